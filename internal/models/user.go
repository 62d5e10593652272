package models

import "strings"

// User is the identity an external provider vouches for. The zero value is a guest.
type User struct {
	ID           string `json:"userId,omitempty"`
	Email        string `json:"email,omitempty"`
	Token        string `json:"token,omitempty"`
	RefreshToken string `json:"refreshToken,omitempty"`
	SessionID    string `json:"sessionId,omitempty"`
}

// Guest reports whether there is no signed-in user at all.
func (u User) Guest() bool {
	return strings.TrimSpace(u.ID) == ""
}

// Complete reports whether the identity carries everything the avatar backend requires to authorise a request.
func (u User) Complete() bool {
	return !u.Guest() && u.Token != "" && u.Email != "" && u.SessionID != ""
}
