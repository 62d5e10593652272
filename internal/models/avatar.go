package models

import (
	"maps"
	"slices"
	"time"

	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/morph"
)

// DefaultAvatarName is used whenever an avatar arrives without a usable name.
const DefaultAvatarName = "Untitled Avatar"

type Gender string

const (
	GenderUnknown Gender = ""
	GenderMale    Gender = "male"
	GenderFemale  Gender = "female"
)

// BasePreset selects the base body pair. Anything but male renders the feminine base.
func (g Gender) BasePreset() morph.BasePreset {
	if g == GenderMale {
		return morph.BaseMasculine
	}
	return morph.BaseFeminine
}

// Sex returns the ratio set the measurement estimator uses for g.
func (g Gender) Sex() measurement.Sex {
	switch g {
	case GenderMale:
		return measurement.SexMale
	case GenderFemale:
		return measurement.SexFemale
	default:
		return measurement.SexUnspecified
	}
}

type AgeRange string

type CreationMode string

const (
	CreationModeManual CreationMode = "manual"
	CreationModeScan   CreationMode = "scan"
	CreationModePreset CreationMode = "preset"
	CreationModeImport CreationMode = "import"
	// CreationModeQuick exists only locally. The backend knows it as quickMode=true.
	CreationModeQuick CreationMode = "quick"
)

type Source string

// BasicMeasurements are the optional inputs every estimate starts from.
type BasicMeasurements struct {
	Height       *float64     `json:"height,omitempty"`
	Weight       *float64     `json:"weight,omitempty"`
	CreationMode CreationMode `json:"creationMode,omitempty"`
}

func (b BasicMeasurements) clone() BasicMeasurements {
	out := BasicMeasurements{CreationMode: b.CreationMode}
	if b.Height != nil {
		h := *b.Height
		out.Height = &h
	}
	if b.Weight != nil {
		w := *b.Weight
		out.Weight = &w
	}
	return out
}

// QuickModeSettings is the simplified intake that seeds full measurements.
type QuickModeSettings struct {
	BodyShape     string                    `json:"bodyShape,omitempty"`
	AthleticLevel measurement.AthleticLevel `json:"athleticLevel,omitempty"`
	Measurements  measurement.Values        `json:"measurements"`
	Skin          map[string]string         `json:"skin,omitempty"`
	Hair          map[string]string         `json:"hair,omitempty"`
	Extras        map[string]string         `json:"extras,omitempty"`
	UpdatedAt     time.Time                 `json:"updatedAt"`
}

// Attributes returns the free-form attribute group of section, or nil for sections that are not attribute groups.
func (q *QuickModeSettings) Attributes(section DirtySection) *map[string]string {
	switch section {
	case SectionQuickModeSkin:
		return &q.Skin
	case SectionQuickModeHair:
		return &q.Hair
	case SectionQuickModeExtras:
		return &q.Extras
	default:
		return nil
	}
}

func (q *QuickModeSettings) clone() *QuickModeSettings {
	if q == nil {
		return nil
	}
	out := *q
	out.Measurements = q.Measurements.Clone()
	out.Skin = maps.Clone(q.Skin)
	out.Hair = maps.Clone(q.Hair)
	out.Extras = maps.Clone(q.Extras)
	return &out
}

// ClothingSelection is the item chosen for one clothing category.
type ClothingSelection struct {
	ItemID      string `json:"itemId"`
	SubCategory string `json:"subCategory,omitempty"`
}

// AvatarConfiguration is the full state of one avatar being customised.
type AvatarConfiguration struct {
	ID           string       `json:"id,omitempty"`
	Name         string       `json:"name"`
	Gender       Gender       `json:"gender,omitempty"`
	AgeRange     AgeRange     `json:"ageRange,omitempty"`
	CreationMode CreationMode `json:"creationMode,omitempty"`
	Source       Source       `json:"source,omitempty"`
	QuickMode    bool         `json:"quickMode"`

	Basic         BasicMeasurements  `json:"basicMeasurements"`
	Body          measurement.Values `json:"bodyMeasurements"`
	QuickSettings *QuickModeSettings `json:"quickModeSettings,omitempty"`
	// Baseline is derived from Basic on load and never edited directly.
	Baseline measurement.Values `json:"baselineMeasurements"`

	MorphValues []morph.Attribute            `json:"morphValues"`
	Clothing    map[string]ClothingSelection `json:"clothingSelections,omitempty"`

	LastUpdated time.Time `json:"lastUpdated"`
}

// Clone returns a deep copy that shares nothing with c.
func (c *AvatarConfiguration) Clone() *AvatarConfiguration {
	if c == nil {
		return nil
	}
	out := *c
	out.Basic = c.Basic.clone()
	out.Body = c.Body.Clone()
	out.Baseline = c.Baseline.Clone()
	out.QuickSettings = c.QuickSettings.clone()
	out.MorphValues = slices.Clone(c.MorphValues)
	out.Clothing = maps.Clone(c.Clothing)
	return &out
}

// MorphDerived reports whether the measurements follow the sliders. Scanned and imported measurements are
// authoritative and never rewritten from slider edits.
func (c *AvatarConfiguration) MorphDerived() bool {
	if !c.QuickMode {
		return false
	}
	mode := c.CreationMode
	if c.Basic.CreationMode != "" {
		mode = c.Basic.CreationMode
	}
	return mode != CreationModeScan && mode != CreationModeImport
}

// MorphIndex returns the position of morphID in MorphValues or -1.
func (c *AvatarConfiguration) MorphIndex(morphID int) int {
	return slices.IndexFunc(c.MorphValues, func(a morph.Attribute) bool {
		return a.ID == morphID
	})
}

// DirtySection names a logical group of state that changed since the last successful save.
type DirtySection string

const (
	SectionMorphs                DirtySection = "morphs"
	SectionQuickModeMeasurements DirtySection = "quickMode.measurements"
	SectionQuickModeSkin         DirtySection = "quickMode.skin"
	SectionQuickModeHair         DirtySection = "quickMode.hair"
	SectionQuickModeExtras       DirtySection = "quickMode.extras"
	SectionClothing              DirtySection = "clothing"
)

// Sections lists every dirty section in a stable order.
var Sections = []DirtySection{
	SectionMorphs,
	SectionQuickModeMeasurements,
	SectionQuickModeSkin,
	SectionQuickModeHair,
	SectionQuickModeExtras,
	SectionClothing,
}

// ParseDirtySection accepts the section name as used on the wire.
func ParseDirtySection(s string) (DirtySection, bool) {
	section := DirtySection(s)
	return section, slices.Contains(Sections, section)
}
