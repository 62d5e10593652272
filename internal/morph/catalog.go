// Package morph holds the renderer's morph slider catalog, the backend-key mapping and the conversion between the
// backend 0-100 scale and each morph's native range.
package morph

import (
	_ "embed"
	"log/slog"
	"slices"

	"github.com/agnivade/levenshtein"
	"github.com/fitspace/morphsync/internal/errors"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var catalogDefinition []byte

// Category groups morphs in the customisation UI.
type Category string

const (
	CategoryWaist Category = "Waist"
	CategoryHips  Category = "Hips"
	CategoryArms  Category = "Arms"
	CategoryHand  Category = "Hand"
	CategoryChest Category = "Chest"
	CategoryNeck  Category = "Neck"
	CategoryHead  Category = "Head"
	CategoryLegs  Category = "Legs"
	CategoryTorso Category = "Torso"
	CategoryBase  Category = "Base"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryBase, CategoryTorso, CategoryChest, CategoryWaist, CategoryHips,
	CategoryArms, CategoryHand, CategoryNeck, CategoryHead, CategoryLegs,
}

const (
	MinValue     = 0.0
	MaxValue     = 100.0
	NeutralValue = 50.0
)

var (
	ErrInvalidCatalog = errors.NewSentinel("invalid morph catalog")
	ErrUnknownMorph   = errors.NewSentinel("unknown morph")
)

// Definition is the immutable description of one renderer slider.
type Definition struct {
	ID         int      `yaml:"id" json:"morphId"`
	Category   Category `yaml:"category" json:"category"`
	Label      string   `yaml:"label" json:"labelName"`
	BackendKey string   `yaml:"backendKey" json:"backendKey,omitempty"`
	Min        float64  `yaml:"min" json:"min"`
	Max        float64  `yaml:"max" json:"max"`
	// Default is the slider position a fresh avatar starts with.
	Default *float64 `yaml:"value" json:"-"`
}

// Range returns the native numeric range of the morph.
func (d Definition) Range() Range {
	return Range{Min: d.Min, Max: d.Max}
}

// DefaultValue returns the initial slider position on the backend scale.
func (d Definition) DefaultValue() float64 {
	if d.Default == nil {
		return NeutralValue
	}
	return *d.Default
}

// Attribute is a per-avatar copy of a morph carrying its own slider value on the backend 0-100 scale.
type Attribute struct {
	Definition
	Value float64 `json:"value"`
}

// Catalog is the registry of every morph the renderer knows. It is never mutated after construction.
type Catalog struct {
	definitions  []Definition
	byID         map[int]int
	byBackendKey map[string]int
}

type catalogFile struct {
	Morphs []Definition `yaml:"morphs"`
}

// Parse reads a YAML catalog and validates that identities and backend keys are unique.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, errors.Wrap(ErrInvalidCatalog, "unmarshal catalog", slog.String("cause", err.Error()))
	}
	return New(file.Morphs)
}

// New builds a catalog from definitions, keeping their order.
func New(definitions []Definition) (*Catalog, error) {
	c := &Catalog{
		definitions:  slices.Clone(definitions),
		byID:         make(map[int]int, len(definitions)),
		byBackendKey: make(map[string]int),
	}
	var errs []error
	for i, d := range c.definitions {
		if _, dup := c.byID[d.ID]; dup {
			errs = append(errs, errors.Wrap(ErrInvalidCatalog, "duplicate morph id", slog.Int("morphID", d.ID)))
			continue
		}
		if !slices.Contains(Categories, d.Category) {
			errs = append(errs, errors.Wrap(ErrInvalidCatalog, "unknown category",
				slog.Int("morphID", d.ID), slog.String("category", string(d.Category))))
		}
		if d.Max < d.Min {
			errs = append(errs, errors.Wrap(ErrInvalidCatalog, "inverted range", slog.Int("morphID", d.ID)))
		}
		if v := d.DefaultValue(); v < MinValue || v > MaxValue {
			errs = append(errs, errors.Wrap(ErrInvalidCatalog, "default out of range", slog.Int("morphID", d.ID)))
		}
		c.byID[d.ID] = i
		if d.BackendKey == "" {
			continue
		}
		if other, dup := c.byBackendKey[d.BackendKey]; dup {
			errs = append(errs, errors.Wrap(ErrInvalidCatalog, "duplicate backend key",
				slog.String("backendKey", d.BackendKey),
				slog.Int("morphID", d.ID), slog.Int("otherMorphID", c.definitions[other].ID)))
			continue
		}
		c.byBackendKey[d.BackendKey] = i
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return c, nil
}

var defaultCatalog = func() *Catalog {
	c, err := Parse(catalogDefinition)
	if err != nil {
		panic(err)
	}
	return c
}()

// Default returns the catalog embedded in the binary.
func Default() *Catalog {
	return defaultCatalog
}

// Len returns the number of morphs.
func (c *Catalog) Len() int {
	return len(c.definitions)
}

// Definitions returns a copy of every definition in catalog order.
func (c *Catalog) Definitions() []Definition {
	return slices.Clone(c.definitions)
}

// Lookup returns the definition of morphID.
func (c *Catalog) Lookup(morphID int) (Definition, bool) {
	i, ok := c.byID[morphID]
	if !ok {
		return Definition{}, false //nolint:exhaustruct // zero value on miss
	}
	return c.definitions[i], true
}

// BackendKeyFor returns the remote-facing key of morphID. Render-only morphs have none.
func (c *Catalog) BackendKeyFor(morphID int) (string, bool) {
	d, ok := c.Lookup(morphID)
	if !ok || d.BackendKey == "" {
		return "", false
	}
	return d.BackendKey, true
}

// MorphIDFor resolves a backend key to the morph it addresses.
func (c *Catalog) MorphIDFor(backendKey string) (int, bool) {
	i, ok := c.byBackendKey[backendKey]
	if !ok {
		return 0, false
	}
	return c.definitions[i].ID, true
}

// BackendKeys returns the key to morph id table.
func (c *Catalog) BackendKeys() map[string]int {
	out := make(map[string]int, len(c.byBackendKey))
	for key, i := range c.byBackendKey {
		out[key] = c.definitions[i].ID
	}
	return out
}

const maxSuggestionDistance = 3

// SuggestBackendKey finds the known key closest to an unmapped one, for warnings about typos or renamed keys.
func (c *Catalog) SuggestBackendKey(unknown string) (string, bool) {
	best, bestDistance := "", maxSuggestionDistance+1
	for _, d := range c.definitions {
		if d.BackendKey == "" {
			continue
		}
		distance := levenshtein.ComputeDistance(unknown, d.BackendKey)
		if distance < bestDistance || (distance == bestDistance && d.BackendKey < best) {
			best, bestDistance = d.BackendKey, distance
		}
	}
	return best, best != ""
}

// NewAttributes returns fresh per-avatar copies of every morph at their default positions.
func (c *Catalog) NewAttributes() []Attribute {
	attrs := make([]Attribute, len(c.definitions))
	for i, d := range c.definitions {
		attrs[i] = Attribute{Definition: d, Value: d.DefaultValue()}
	}
	return attrs
}
