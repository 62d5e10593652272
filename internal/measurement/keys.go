// Package measurement holds the body measurement keys and the anthropometric estimator that fills in the
// measurements a user did not provide.
package measurement

import (
	"math"
	"strings"
)

// Key names a body girth or length. All values are centimetres.
type Key string

const (
	Chest       Key = "chest"
	UnderBust   Key = "underBust"
	Waist       Key = "waist"
	HighHip     Key = "highHip"
	LowHip      Key = "lowHip"
	Neck        Key = "neck"
	Shoulder    Key = "shoulder"
	ArmLength   Key = "armLength"
	UpperArm    Key = "upperArm"
	Forearm     Key = "forearm"
	Wrist       Key = "wrist"
	Thigh       Key = "thigh"
	Knee        Key = "knee"
	Calf        Key = "calf"
	Ankle       Key = "ankle"
	Inseam      Key = "inseam"
	Outseam     Key = "outseam"
	TorsoLength Key = "torsoLength"
	Head        Key = "head"
	HandLength  Key = "handLength"
)

// Kind tells whether a measurement follows soft tissue (girths) or the skeleton (lengths).
type Kind uint8

const (
	KindGirth Kind = iota
	KindLength
)

// Definition describes one measurement key and the fraction of body height it typically takes.
type Definition struct {
	Key         Key
	Kind        Kind
	MaleRatio   float64
	FemaleRatio float64
}

// Definitions is the single source of truth for measurement keys. Order is stable and used for output.
var Definitions = []Definition{
	{Key: Chest, Kind: KindGirth, MaleRatio: 0.54, FemaleRatio: 0.52},
	{Key: UnderBust, Kind: KindGirth, MaleRatio: 0.48, FemaleRatio: 0.45},
	{Key: Waist, Kind: KindGirth, MaleRatio: 0.46, FemaleRatio: 0.42},
	{Key: HighHip, Kind: KindGirth, MaleRatio: 0.50, FemaleRatio: 0.51},
	{Key: LowHip, Kind: KindGirth, MaleRatio: 0.54, FemaleRatio: 0.57},
	{Key: Neck, Kind: KindGirth, MaleRatio: 0.22, FemaleRatio: 0.195},
	{Key: Shoulder, Kind: KindLength, MaleRatio: 0.26, FemaleRatio: 0.235},
	{Key: ArmLength, Kind: KindLength, MaleRatio: 0.35, FemaleRatio: 0.34},
	{Key: UpperArm, Kind: KindGirth, MaleRatio: 0.18, FemaleRatio: 0.165},
	{Key: Forearm, Kind: KindGirth, MaleRatio: 0.155, FemaleRatio: 0.14},
	{Key: Wrist, Kind: KindGirth, MaleRatio: 0.10, FemaleRatio: 0.09},
	{Key: Thigh, Kind: KindGirth, MaleRatio: 0.32, FemaleRatio: 0.33},
	{Key: Knee, Kind: KindGirth, MaleRatio: 0.215, FemaleRatio: 0.21},
	{Key: Calf, Kind: KindGirth, MaleRatio: 0.21, FemaleRatio: 0.20},
	{Key: Ankle, Kind: KindGirth, MaleRatio: 0.13, FemaleRatio: 0.125},
	{Key: Inseam, Kind: KindLength, MaleRatio: 0.45, FemaleRatio: 0.44},
	{Key: Outseam, Kind: KindLength, MaleRatio: 0.61, FemaleRatio: 0.60},
	{Key: TorsoLength, Kind: KindLength, MaleRatio: 0.30, FemaleRatio: 0.29},
	{Key: Head, Kind: KindGirth, MaleRatio: 0.33, FemaleRatio: 0.32},
	{Key: HandLength, Kind: KindLength, MaleRatio: 0.108, FemaleRatio: 0.105},
}

var definitionsByKey = func() map[Key]Definition {
	m := make(map[Key]Definition, len(Definitions))
	for _, d := range Definitions {
		m[d.Key] = d
	}
	return m
}()

// aliases maps key spellings found in older records onto the canonical keys.
var aliases = map[string]Key{
	"chestcircumference": Chest,
	"bust":               Chest,
	"waistcircumference": Waist,
	"hips":               LowHip,
	"hip":                LowHip,
	"hipcircumference":   LowHip,
	"neckcircumference":  Neck,
	"shoulderwidth":      Shoulder,
	"bicep":              UpperArm,
	"biceps":             UpperArm,
	"leglength":          Inseam,
}

// Lookup returns the definition of k.
func Lookup(k Key) (Definition, bool) {
	d, ok := definitionsByKey[k]
	return d, ok
}

// ParseKey resolves a wire key, accepting the canonical spelling case-insensitively and a few legacy aliases.
func ParseKey(s string) (Key, bool) {
	s = strings.TrimSpace(s)
	if _, ok := definitionsByKey[Key(s)]; ok {
		return Key(s), true
	}
	lower := strings.ToLower(s)
	for _, d := range Definitions {
		if strings.ToLower(string(d.Key)) == lower {
			return d.Key, true
		}
	}
	k, ok := aliases[lower]
	return k, ok
}

// Values is a sparse set of measurements. A missing key means unknown.
type Values map[Key]float64

// Clone returns an independent copy. Cloning nil yields an empty set.
func (v Values) Clone() Values {
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = val
	}
	return out
}

// Get returns the value of k and whether it is known.
func (v Values) Get(k Key) (float64, bool) {
	val, ok := v[k]
	return val, ok
}

// Equal reports whether both sets hold the same keys with the same values.
func (v Values) Equal(other Values) bool {
	if len(v) != len(other) {
		return false
	}
	for k, val := range v {
		if o, ok := other[k]; !ok || o != val {
			return false
		}
	}
	return true
}

// Round1 rounds to one decimal place, the precision all measurements are reported in.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10 //nolint:mnd // one decimal
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
