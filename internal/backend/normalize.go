package backend

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/fitspace/morphsync/internal/models"
)

var ageRanges = []models.AgeRange{
	"child", "teen", "young_adult", "adult", "mature", "senior",
	"15-19", "20-29", "30-39", "40-49", "50-59", "60-69", "70-79", "80-89", "90-99",
}

const (
	youngestBucket = 15
	oldestBucket   = 90
)

var creationModes = []models.CreationMode{
	models.CreationModeManual,
	models.CreationModeScan,
	models.CreationModePreset,
	models.CreationModeImport,
}

var sources = []models.Source{"web", "ios", "android", "kiosk", "api", "integration"}

func normalizeToken(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeGender returns GenderUnknown for everything but male and female.
func NormalizeGender(s string) models.Gender {
	switch g := models.Gender(normalizeToken(s)); g {
	case models.GenderMale, models.GenderFemale:
		return g
	default:
		return models.GenderUnknown
	}
}

// NormalizeAgeRange accepts the bucket labels and maps legacy "a-b" and "a+" ranges onto the decade bucket of their
// midpoint. Anything else is dropped.
func NormalizeAgeRange(s string) models.AgeRange {
	token := normalizeToken(s)
	if token == "" {
		return ""
	}
	if slices.Contains(ageRanges, models.AgeRange(token)) {
		return models.AgeRange(token)
	}
	lo, hi, ok := parseAgeSpan(token)
	if !ok {
		return ""
	}
	return ageBucket((lo + hi) / 2) //nolint:mnd // midpoint
}

func parseAgeSpan(token string) (int, int, bool) {
	if open, ok := strings.CutSuffix(token, "+"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(open))
		return n, n, err == nil
	}
	loStr, hiStr, ok := strings.Cut(token, "-")
	if !ok {
		return 0, 0, false
	}
	lo, errLo := strconv.Atoi(strings.TrimSpace(loStr))
	hi, errHi := strconv.Atoi(strings.TrimSpace(hiStr))
	if errLo != nil || errHi != nil || hi < lo {
		return 0, 0, false
	}
	return lo, hi, true
}

func ageBucket(age int) models.AgeRange {
	if age < 20 { //nolint:mnd // first decade bucket
		age = youngestBucket
	}
	if age > oldestBucket {
		age = oldestBucket
	}
	if age == youngestBucket {
		return "15-19"
	}
	decade := age / 10 * 10                                        //nolint:mnd // decade
	return models.AgeRange(fmt.Sprintf("%d-%d", decade, decade+9)) //nolint:mnd // end of decade
}

// NormalizeCreationMode accepts the modes the backend stores plus the local quick mode.
func NormalizeCreationMode(s string) models.CreationMode {
	mode := models.CreationMode(normalizeToken(s))
	if slices.Contains(creationModes, mode) || mode == models.CreationModeQuick {
		return mode
	}
	return ""
}

// wireCreationMode drops the modes the backend does not store.
func wireCreationMode(mode models.CreationMode) models.CreationMode {
	if slices.Contains(creationModes, mode) {
		return mode
	}
	return ""
}

func NormalizeSource(s string) models.Source {
	source := models.Source(normalizeToken(s))
	if slices.Contains(sources, source) {
		return source
	}
	return ""
}
