package morph

// Identities of the gender-conditioned base body morphs.
const (
	FeminineBodyID  = 1
	FeminineHeadID  = 2
	MasculineBodyID = 3
	MasculineHeadID = 4
)

// BasePreset selects which base body pair is active.
type BasePreset uint8

const (
	BaseFeminine BasePreset = iota
	BaseMasculine
)

type basePair struct {
	body int
	head int
}

var basePairs = map[BasePreset]basePair{
	BaseFeminine:  {body: FeminineBodyID, head: FeminineHeadID},
	BaseMasculine: {body: MasculineBodyID, head: MasculineHeadID},
}

// BaseBodyValues returns the slider value of every base morph for preset: its pair at 100, every other pair at 0.
// Unknown presets fall back to BaseFeminine so the result always covers all base morphs.
func BaseBodyValues(preset BasePreset) map[int]float64 {
	active, ok := basePairs[preset]
	if !ok {
		active = basePairs[BaseFeminine]
	}
	values := make(map[int]float64, 2*len(basePairs)) //nolint:mnd // body and head per pair
	for _, pair := range basePairs {
		values[pair.body] = MinValue
		values[pair.head] = MinValue
	}
	values[active.body] = MaxValue
	values[active.head] = MaxValue
	return values
}

// ApplyBaseBody sets the base morphs in attrs for preset and reports whether anything changed.
func ApplyBaseBody(attrs []Attribute, preset BasePreset) bool {
	values := BaseBodyValues(preset)
	changed := false
	for i := range attrs {
		v, ok := values[attrs[i].ID]
		if !ok || attrs[i].Value == v {
			continue
		}
		attrs[i].Value = v
		changed = true
	}
	return changed
}
