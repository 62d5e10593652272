// Package bridge converts between body measurements and the renderer sliders that express them.
//
// The relationship is lossy on purpose. Writing a measurement moves every slider classified to it, and reading a
// measurement back averages those sliders.
package bridge

import (
	"math"
	"slices"

	"github.com/fitspace/morphsync/internal/classify"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/morph"
)

// DefaultSlope is the centimetres one slider step represents for measurements missing from the slope table.
const DefaultSlope = 0.3

// DefaultSlopes holds centimetres per slider step for each measurement.
var DefaultSlopes = map[measurement.Key]float64{
	measurement.Chest:       0.4,
	measurement.UnderBust:   0.35,
	measurement.Waist:       0.4,
	measurement.HighHip:     0.35,
	measurement.LowHip:      0.4,
	measurement.Neck:        0.15,
	measurement.Shoulder:    0.2,
	measurement.ArmLength:   0.25,
	measurement.UpperArm:    0.15,
	measurement.Forearm:     0.12,
	measurement.Wrist:       0.08,
	measurement.Thigh:       0.25,
	measurement.Knee:        0.15,
	measurement.Calf:        0.15,
	measurement.Ankle:       0.1,
	measurement.Inseam:      0.3,
	measurement.Outseam:     0.35,
	measurement.TorsoLength: 0.25,
	measurement.Head:        0.2,
	measurement.HandLength:  0.05,
}

// Bridge holds the classification of a catalog so conversions do not re-run the keyword rules on every edit.
type Bridge struct {
	byKey   map[measurement.Key][]int
	byMorph map[int]measurement.Key
	slopes  map[measurement.Key]float64
}

// New classifies every morph of catalog once. A nil slopes table means DefaultSlopes.
func New(catalog *morph.Catalog, classifier *classify.Classifier, slopes map[measurement.Key]float64) *Bridge {
	if slopes == nil {
		slopes = DefaultSlopes
	}
	b := &Bridge{
		byKey:   classifier.Index(catalog.Definitions()),
		byMorph: make(map[int]measurement.Key),
		slopes:  slopes,
	}
	for key, ids := range b.byKey {
		for _, id := range ids {
			b.byMorph[id] = key
		}
	}
	return b
}

// Slope returns the centimetres per slider step of key.
func (b *Bridge) Slope(key measurement.Key) float64 {
	if s, ok := b.slopes[key]; ok && s > 0 {
		return s
	}
	return DefaultSlope
}

// MeasurementFor returns the measurement a morph influences.
func (b *Bridge) MeasurementFor(morphID int) (measurement.Key, bool) {
	key, ok := b.byMorph[morphID]
	return key, ok
}

// MorphsFor returns the morphs classified to key in catalog order.
func (b *Bridge) MorphsFor(key measurement.Key) []int {
	return slices.Clone(b.byKey[key])
}

// Keys returns every measurement at least one morph influences, in measurement table order.
func (b *Bridge) Keys() []measurement.Key {
	keys := make([]measurement.Key, 0, len(b.byKey))
	for _, d := range measurement.Definitions {
		if len(b.byKey[d.Key]) > 0 {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

// SliderFor returns the slider position that expresses value relative to baseline. Without a baseline for key the
// value itself is the baseline, so the result is neutral.
func (b *Bridge) SliderFor(key measurement.Key, value float64, baseline measurement.Values) float64 {
	base, ok := baseline.Get(key)
	if !ok {
		base = value
	}
	return morph.Clamp(math.Round(morph.NeutralValue + (value-base)/b.Slope(key)))
}

// MeasurementToSliders returns the new value of every morph classified to key whose slider would change. attrs is
// not modified.
func (b *Bridge) MeasurementToSliders(
	attrs []morph.Attribute,
	key measurement.Key,
	value float64,
	baseline measurement.Values,
) map[int]float64 {
	target := b.SliderFor(key, value, baseline)
	affected := make(map[int]float64)
	for _, attr := range attrs {
		if k, ok := b.byMorph[attr.ID]; !ok || k != key {
			continue
		}
		if attr.Value != target {
			affected[attr.ID] = target
		}
	}
	return affected
}

// SlidersToMeasurement reads key back from the average of its sliders. The baseline is the zero point; lacking one,
// the displacement is applied to the previous value. With no morph classified to key, or nothing to anchor the
// displacement to, the previous value is returned as is and ok reports whether it was known.
func (b *Bridge) SlidersToMeasurement(
	attrs []morph.Attribute,
	key measurement.Key,
	previous measurement.Values,
	baseline measurement.Values,
) (float64, bool) {
	prev, hasPrev := previous.Get(key)
	avg, ok := b.average(attrs, key)
	if !ok {
		return prev, hasPrev
	}
	anchor, ok := baseline.Get(key)
	if !ok {
		if !hasPrev {
			return 0, false
		}
		anchor = prev
	}
	return measurement.Round1(anchor + (avg-morph.NeutralValue)*b.Slope(key)), true
}

func (b *Bridge) average(attrs []morph.Attribute, key measurement.Key) (float64, bool) {
	var (
		sum   float64
		count int
	)
	for _, attr := range attrs {
		if k, ok := b.byMorph[attr.ID]; ok && k == key {
			sum += attr.Value
			count++
		}
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}
