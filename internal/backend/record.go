package backend

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/models"
)

// MorphTarget is one stored slider as the backend reports it. ID is whatever the record was keyed by, usually the
// backend key.
type MorphTarget struct {
	ID          string   `json:"id"`
	BackendKey  string   `json:"backendKey,omitempty"`
	Value       *float64 `json:"sliderValue,omitempty"`
	UnrealValue *float64 `json:"unrealValue,omitempty"`
}

// Key returns the backend key the target addresses.
func (t MorphTarget) Key() string {
	if t.BackendKey != "" {
		return t.BackendKey
	}
	return t.ID
}

// Record is an avatar as stored by the backend, normalised on decode.
//
// Decoding is lenient: invalid enums become empty, unparseable numbers are dropped and both the map and the list
// form of morphTargets are accepted. Every dropped field is listed in Warnings.
type Record struct {
	ID                 string
	UserID             string
	Name               string
	Gender             models.Gender
	AgeRange           models.AgeRange
	CreationMode       models.CreationMode
	Source             models.Source
	QuickMode          bool
	CreatedBySession   string
	BasicMeasurements  models.BasicMeasurements
	BodyMeasurements   measurement.Values
	MorphTargets       []MorphTarget
	QuickModeSettings  *models.QuickModeSettings
	ClothingSelections map[string]models.ClothingSelection
	CreatedAt          time.Time
	UpdatedAt          time.Time

	Warnings []string
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *Record) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err //nolint:wrapcheck // stdlib decoding error is descriptive enough
	}
	d := decoder{}
	*r = Record{
		ID:                 d.identifier(fields["id"], "id"),
		UserID:             d.identifier(fields["userId"], "userId"),
		Name:               strings.TrimSpace(d.str(fields["name"], "name")),
		Gender:             NormalizeGender(d.str(fields["gender"], "gender")),
		AgeRange:           NormalizeAgeRange(d.str(fields["ageRange"], "ageRange")),
		CreationMode:       NormalizeCreationMode(d.str(fields["creationMode"], "creationMode")),
		Source:             NormalizeSource(d.str(fields["source"], "source")),
		QuickMode:          d.boolean(fields["quickMode"], "quickMode"),
		CreatedBySession:   d.str(fields["createdBySession"], "createdBySession"),
		BodyMeasurements:   measurement.Values{},
		ClothingSelections: d.clothing(fields["clothingSelections"]),
		CreatedAt:          d.timestamp(fields["createdAt"], "createdAt"),
		UpdatedAt:          d.timestamp(fields["updatedAt"], "updatedAt"),
	}
	if r.Name == "" {
		r.Name = models.DefaultAvatarName
	}

	basic, basicMode := d.measurements(fields["basicMeasurements"], "basicMeasurements")
	for key, value := range basic {
		v := value
		switch key {
		case "height":
			r.BasicMeasurements.Height = &v
		case "weight":
			r.BasicMeasurements.Weight = &v
		default:
			d.warn("basicMeasurements.%s: unknown field", key)
		}
	}
	body, bodyMode := d.measurements(fields["bodyMeasurements"], "bodyMeasurements")
	for key, value := range body {
		if k, ok := measurement.ParseKey(key); ok {
			r.BodyMeasurements[k] = value
		} else {
			d.warn("bodyMeasurements.%s: unknown measurement", key)
		}
	}
	// A mode stored alongside the measurements wins over a missing top-level one.
	if r.CreationMode == "" {
		r.CreationMode = firstNonEmpty(basicMode, bodyMode)
	}
	if r.CreationMode == "" && r.QuickMode {
		r.CreationMode = models.CreationModeQuick
	}
	r.BasicMeasurements.CreationMode = firstNonEmpty(basicMode, r.CreationMode)

	r.MorphTargets = d.morphTargets(fields["morphTargets"])
	r.QuickModeSettings = d.quickMode(fields["quickModeSettings"])
	if r.QuickModeSettings != nil && !r.QuickMode {
		r.QuickMode = true
	}
	r.Warnings = d.warnings
	return nil
}

func firstNonEmpty(modes ...models.CreationMode) models.CreationMode {
	for _, m := range modes {
		if m != "" {
			return m
		}
	}
	return ""
}

// decoder collects warnings while reading loosely typed JSON.
type decoder struct {
	warnings []string
}

func (d *decoder) warn(format string, args ...any) {
	d.warnings = append(d.warnings, fmt.Sprintf(format, args...))
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func (d *decoder) str(raw json.RawMessage, field string) string {
	if isNull(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		d.warn("%s: not a string", field)
		return ""
	}
	return s
}

// identifier accepts both string and numeric ids.
func (d *decoder) identifier(raw json.RawMessage, field string) string {
	if isNull(raw) {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return strings.TrimSpace(d.str(raw, field))
}

func (d *decoder) boolean(raw json.RawMessage, field string) bool {
	if isNull(raw) {
		return false
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err != nil {
		d.warn("%s: not a boolean", field)
		return false
	}
	return b
}

// number accepts JSON numbers and numeric strings.
func (d *decoder) number(raw json.RawMessage, field string) (float64, bool) {
	if isNull(raw) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if f, err = strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return f, true
		}
	}
	d.warn("%s: not a number", field)
	return 0, false
}

func (d *decoder) optionalNumber(raw json.RawMessage, field string) *float64 {
	if f, ok := d.number(raw, field); ok {
		return &f
	}
	return nil
}

func (d *decoder) timestamp(raw json.RawMessage, field string) time.Time {
	s := d.str(raw, field)
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		d.warn("%s: not an RFC 3339 timestamp", field)
		return time.Time{}
	}
	return t
}

func (d *decoder) object(raw json.RawMessage, field string) map[string]json.RawMessage {
	if isNull(raw) {
		return nil
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		d.warn("%s: not an object", field)
		return nil
	}
	return obj
}

// measurements reads a numeric map, separating out the creationMode status key some records store inside it.
func (d *decoder) measurements(raw json.RawMessage, field string) (map[string]float64, models.CreationMode) {
	obj := d.object(raw, field)
	out := make(map[string]float64, len(obj))
	var mode models.CreationMode
	for key, value := range obj {
		if key == "creationMode" {
			mode = NormalizeCreationMode(d.str(value, field+".creationMode"))
			continue
		}
		if f, ok := d.number(value, field+"."+key); ok {
			out[key] = f
		}
	}
	return out, mode
}

func (d *decoder) morphTargets(raw json.RawMessage) []MorphTarget {
	if isNull(raw) {
		return nil
	}
	byID := make(map[string]MorphTarget)
	trimmed := bytes.TrimSpace(raw)
	switch trimmed[0] {
	case '{':
		for id, value := range d.object(raw, "morphTargets") {
			if target, ok := d.morphTarget(id, value); ok {
				byID[target.ID] = target
			}
		}
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			d.warn("morphTargets: not a list")
			return nil
		}
		for i, item := range items {
			entry := d.object(item, fmt.Sprintf("morphTargets[%d]", i))
			id := d.identifier(entry["id"], fmt.Sprintf("morphTargets[%d].id", i))
			if id == "" {
				d.warn("morphTargets[%d]: missing id", i)
				continue
			}
			if target, ok := d.morphTarget(id, item); ok {
				byID[target.ID] = target
			}
		}
	default:
		d.warn("morphTargets: neither an object nor a list")
		return nil
	}

	ids := make([]string, 0, len(byID))
	for id := range byID {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	targets := make([]MorphTarget, 0, len(ids))
	for _, id := range ids {
		targets = append(targets, byID[id])
	}
	return targets
}

// morphTarget reads either a bare slider number or an object carrying sliderValue, value or unrealValue.
func (d *decoder) morphTarget(id string, raw json.RawMessage) (MorphTarget, bool) {
	id = strings.TrimSpace(id)
	field := "morphTargets." + id
	if id == "" || isNull(raw) {
		return MorphTarget{}, false
	}
	target := MorphTarget{ID: id}
	if bytes.TrimSpace(raw)[0] != '{' {
		target.Value = d.optionalNumber(raw, field)
		return target, target.Value != nil
	}
	entry := d.object(raw, field)
	target.BackendKey = strings.TrimSpace(d.str(entry["backendKey"], field+".backendKey"))
	slider, ok := entry["sliderValue"]
	if !ok || isNull(slider) {
		slider = entry["value"]
	}
	target.Value = d.optionalNumber(slider, field+".sliderValue")
	target.UnrealValue = d.optionalNumber(entry["unrealValue"], field+".unrealValue")
	if target.Value == nil && target.UnrealValue == nil {
		d.warn("%s: no value", field)
		return MorphTarget{}, false
	}
	return target, true
}

func (d *decoder) quickMode(raw json.RawMessage) *models.QuickModeSettings {
	obj := d.object(raw, "quickModeSettings")
	if obj == nil {
		return nil
	}
	settings := &models.QuickModeSettings{
		BodyShape:     strings.TrimSpace(d.str(obj["bodyShape"], "quickModeSettings.bodyShape")),
		AthleticLevel: measurement.ParseAthleticLevel(d.str(obj["athleticLevel"], "quickModeSettings.athleticLevel")),
		Measurements:  measurement.Values{},
		Skin:          d.attributes(obj["skin"], "quickModeSettings.skin"),
		Hair:          d.attributes(obj["hair"], "quickModeSettings.hair"),
		Extras:        d.attributes(obj["extras"], "quickModeSettings.extras"),
		UpdatedAt:     d.timestamp(obj["updatedAt"], "quickModeSettings.updatedAt"),
	}
	values, _ := d.measurements(obj["measurements"], "quickModeSettings.measurements")
	for key, value := range values {
		if k, ok := measurement.ParseKey(key); ok {
			settings.Measurements[k] = value
		} else {
			d.warn("quickModeSettings.measurements.%s: unknown measurement", key)
		}
	}
	return settings
}

func (d *decoder) attributes(raw json.RawMessage, field string) map[string]string {
	obj := d.object(raw, field)
	if len(obj) == 0 {
		return nil
	}
	out := make(map[string]string, len(obj))
	for key, value := range obj {
		if s := d.str(value, field+"."+key); s != "" {
			out[key] = s
		}
	}
	return out
}

func (d *decoder) clothing(raw json.RawMessage) map[string]models.ClothingSelection {
	obj := d.object(raw, "clothingSelections")
	if len(obj) == 0 {
		return nil
	}
	out := make(map[string]models.ClothingSelection, len(obj))
	for category, value := range obj {
		entry := d.object(value, "clothingSelections."+category)
		itemID := d.identifier(entry["itemId"], "clothingSelections."+category+".itemId")
		if itemID == "" {
			continue
		}
		out[category] = models.ClothingSelection{
			ItemID:      itemID,
			SubCategory: d.str(entry["subCategory"], "clothingSelections."+category+".subCategory"),
		}
	}
	return out
}

// Payload is the body of create and update requests.
type Payload struct {
	Name               string                              `json:"name"`
	Gender             models.Gender                       `json:"gender,omitempty"`
	AgeRange           models.AgeRange                     `json:"ageRange,omitempty"`
	CreationMode       models.CreationMode                 `json:"creationMode,omitempty"`
	Source             models.Source                       `json:"source,omitempty"`
	QuickMode          bool                                `json:"quickMode"`
	CreatedBySession   string                              `json:"createdBySession,omitempty"`
	BasicMeasurements  models.BasicMeasurements            `json:"basicMeasurements"`
	BodyMeasurements   measurement.Values                  `json:"bodyMeasurements"`
	MorphTargets       map[string]int                      `json:"morphTargets"`
	QuickModeSettings  *QuickModeSettings                  `json:"quickModeSettings,omitempty"`
	ClothingSelections map[string]models.ClothingSelection `json:"clothingSelections,omitempty"`
}

// QuickModeSettings is the part of the quick mode intake the backend stores. The backend rejects any other field,
// so skin, hair, extras and the edit time only live in local drafts.
type QuickModeSettings struct {
	BodyShape     string             `json:"bodyShape,omitempty"`
	AthleticLevel string             `json:"athleticLevel,omitempty"`
	Measurements  measurement.Values `json:"measurements,omitempty"`
}

// WireQuickModeSettings projects q onto the fields the backend accepts.
func WireQuickModeSettings(q *models.QuickModeSettings) *QuickModeSettings {
	if q == nil {
		return nil
	}
	return &QuickModeSettings{
		BodyShape:     q.BodyShape,
		AthleticLevel: string(q.AthleticLevel),
		Measurements:  q.Measurements.Clone(),
	}
}

// sanitized normalises the tags the way the backend stores them and returns nil when nothing is left to send.
func (q *QuickModeSettings) sanitized() *QuickModeSettings {
	if q == nil {
		return nil
	}
	out := &QuickModeSettings{
		BodyShape:     wireTag(q.BodyShape),
		AthleticLevel: wireTag(q.AthleticLevel),
	}
	if len(q.Measurements) > 0 {
		out.Measurements = q.Measurements.Clone()
	}
	if out.BodyShape == "" && out.AthleticLevel == "" && out.Measurements == nil {
		return nil
	}
	return out
}

func wireTag(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "_")
}

// Sanitized returns a copy holding only values the backend accepts: the local quick creation mode is dropped in
// favour of quickMode=true and a blank name becomes the default. A creation mode inside the basic measurements that
// disagrees with the top-level one is dropped, and empty quick mode settings are omitted.
func (p Payload) Sanitized() Payload {
	out := p
	out.Name = strings.TrimSpace(p.Name)
	if out.Name == "" {
		out.Name = models.DefaultAvatarName
	}
	if p.CreationMode == models.CreationModeQuick || p.BasicMeasurements.CreationMode == models.CreationModeQuick {
		out.QuickMode = true
	}
	out.CreationMode = wireCreationMode(p.CreationMode)
	out.BasicMeasurements.CreationMode = wireCreationMode(p.BasicMeasurements.CreationMode)
	if out.CreationMode != "" && out.BasicMeasurements.CreationMode != out.CreationMode {
		out.BasicMeasurements.CreationMode = ""
	}
	out.QuickModeSettings = p.QuickModeSettings.sanitized()
	out.Gender = NormalizeGender(string(p.Gender))
	out.AgeRange = NormalizeAgeRange(string(p.AgeRange))
	out.Source = NormalizeSource(string(p.Source))
	if out.BodyMeasurements == nil {
		out.BodyMeasurements = measurement.Values{}
	}
	if out.MorphTargets == nil {
		out.MorphTargets = map[string]int{}
	}
	return out
}
