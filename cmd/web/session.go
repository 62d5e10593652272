package main

import (
	"encoding/gob"

	"github.com/fitspace/morphsync/internal/models"
)

type sessionKey string

const (
	workspaceIDSessionKey = sessionKey("workspaceID")
	userSessionKey        = sessionKey("user")
)

func init() {
	// scs serialises session values with gob.
	gob.Register(models.User{})
}
