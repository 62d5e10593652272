package measurement

import "strings"

// Sex selects the height ratio table.
type Sex uint8

const (
	SexUnspecified Sex = iota
	SexFemale
	SexMale
)

// AthleticLevel is the self-reported activity level of the quick-mode intake.
type AthleticLevel string

const (
	AthleticLow    AthleticLevel = "low"
	AthleticMedium AthleticLevel = "medium"
	AthleticHigh   AthleticLevel = "high"
)

// ParseAthleticLevel normalises s, returning "" for unknown values.
func ParseAthleticLevel(s string) AthleticLevel {
	switch level := AthleticLevel(strings.ToLower(strings.TrimSpace(s))); level {
	case AthleticLow, AthleticMedium, AthleticHigh:
		return level
	default:
		return ""
	}
}

// muscleOffset is the additive correction in centimetres for muscle-bearing measurements.
func (l AthleticLevel) muscleOffset() float64 {
	switch l {
	case AthleticLow:
		return -1.0
	case AthleticHigh:
		return 1.5 //nolint:mnd // centimetres
	case AthleticMedium:
		return 0
	default:
		return 0
	}
}

// Strategy selects how missing measurements are estimated.
type Strategy string

const (
	// StrategyHeightRatio estimates every missing value as height times a sex-specific ratio.
	StrategyHeightRatio Strategy = "heightRatio"
	// StrategyChained derives part of the measurements from other known or estimated ones.
	StrategyChained Strategy = "chained"
)

// ParseStrategy returns StrategyHeightRatio for anything it does not recognise.
func ParseStrategy(s string) Strategy {
	if strings.EqualFold(strings.TrimSpace(s), string(StrategyChained)) {
		return StrategyChained
	}
	return StrategyHeightRatio
}

// Input is everything the estimator knows about a body.
type Input struct {
	Known    Values
	Height   *float64
	Weight   *float64
	Sex      Sex
	Athletic AthleticLevel
}

// derivation computes Target from Source with optional softness and muscle corrections.
type derivation struct {
	Target   Key
	Source   Key
	Factor   float64
	Softness float64
	Muscle   float64
}

// derivations are evaluated in order, so a target may serve as source for a later rule.
var derivations = []derivation{
	{Target: HighHip, Source: LowHip, Factor: 0.92, Softness: 1.0},
	{Target: UnderBust, Source: Chest, Factor: 0.86, Softness: 0.5},
	{Target: Neck, Source: Chest, Factor: 0.38, Muscle: 0.6},
	{Target: Forearm, Source: UpperArm, Factor: 0.86, Muscle: 0.5},
	{Target: Wrist, Source: Forearm, Factor: 0.65},
	{Target: Knee, Source: Thigh, Factor: 0.66, Softness: 0.5},
	{Target: Calf, Source: Thigh, Factor: 0.64, Softness: 0.5, Muscle: 0.8},
	{Target: Ankle, Source: Calf, Factor: 0.62},
	{Target: Outseam, Source: Inseam, Factor: 1.36},
}

const (
	referenceBMI     = 22.0
	bmiSensitivity   = 0.007
	minBMIAdjustment = -0.05
	maxBMIAdjustment = 0.07

	neutralWaistToHeight = 0.48
	softnessSensitivity  = 20.0
	maxSoftness          = 1.5
)

// BMIAdjustment is the multiplicative correction applied to girths when weight is known.
func BMIAdjustment(heightCM, weightKG float64) float64 {
	if heightCM <= 0 || weightKG <= 0 {
		return 0
	}
	heightM := heightCM / 100 //nolint:mnd // cm to m
	bmi := weightKG / (heightM * heightM)
	return clamp((bmi-referenceBMI)*bmiSensitivity, minBMIAdjustment, maxBMIAdjustment)
}

// Softness is the additive correction derived from the waist-to-height ratio.
func Softness(waistCM, heightCM float64) float64 {
	if heightCM <= 0 {
		return 0
	}
	return clamp((waistCM/heightCM-neutralWaistToHeight)*softnessSensitivity, -maxSoftness, maxSoftness)
}

// FromHeight estimates a single measurement from height alone, applying the BMI adjustment to girths.
func FromHeight(k Key, heightCM float64, weightKG *float64, sex Sex) (float64, bool) {
	d, ok := Lookup(k)
	if !ok || heightCM <= 0 {
		return 0, false
	}
	var ratio float64
	switch sex {
	case SexMale:
		ratio = d.MaleRatio
	case SexFemale:
		ratio = d.FemaleRatio
	case SexUnspecified:
		ratio = (d.MaleRatio + d.FemaleRatio) / 2 //nolint:mnd // mean of both tables
	}
	v := heightCM * ratio
	if d.Kind == KindGirth && weightKG != nil {
		v *= 1 + BMIAdjustment(heightCM, *weightKG)
	}
	return Round1(v), true
}

// EstimateMissing returns in.Known completed with estimates for every missing key.
//
// Known values are never overwritten. Without a positive height nothing is estimated and a copy of in.Known is
// returned.
func EstimateMissing(in Input, strategy Strategy) Values {
	out := in.Known.Clone()
	if in.Height == nil || *in.Height <= 0 {
		return out
	}
	height := *in.Height

	if strategy != StrategyChained {
		for _, d := range Definitions {
			fillFromHeight(out, d.Key, height, in)
		}
		return out
	}

	derived := make(map[Key]bool, len(derivations))
	for _, rule := range derivations {
		derived[rule.Target] = true
	}
	for _, d := range Definitions {
		if !derived[d.Key] {
			fillFromHeight(out, d.Key, height, in)
		}
	}

	softness := 0.0
	if waist, ok := out[Waist]; ok {
		softness = Softness(waist, height)
	}
	muscle := in.Athletic.muscleOffset()
	for _, rule := range derivations {
		if _, ok := out[rule.Target]; ok {
			continue
		}
		source, ok := out[rule.Source]
		if !ok {
			fillFromHeight(out, rule.Target, height, in)
			continue
		}
		out[rule.Target] = Round1(source*rule.Factor + softness*rule.Softness + muscle*rule.Muscle)
	}
	return out
}

func fillFromHeight(out Values, k Key, height float64, in Input) {
	if _, ok := out[k]; ok {
		return
	}
	if v, ok := FromHeight(k, height, in.Weight, in.Sex); ok {
		out[k] = v
	}
}
