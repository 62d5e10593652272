// Package classify decides which body measurement, if any, a morph slider influences.
package classify

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/morph"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Rule maps labels matching Pattern to Key. A rule with an empty Key marks matching morphs as purely cosmetic.
type Rule struct {
	Pattern *regexp.Regexp
	Key     measurement.Key
}

// Keyword builds a rule that classifies matching labels as key.
func Keyword(pattern string, key measurement.Key) Rule {
	return Rule{Pattern: regexp.MustCompile(pattern), Key: key}
}

// Cosmetic builds a rule that stops classification for matching labels.
func Cosmetic(pattern string) Rule {
	return Rule{Pattern: regexp.MustCompile(pattern), Key: ""}
}

// CategoryDefault is the coarse measurement of a category, used when no rule matched the label.
// When Alternative is set and the label matches AlternativePattern, Alternative wins.
type CategoryDefault struct {
	Key                measurement.Key
	AlternativePattern *regexp.Regexp
	Alternative        measurement.Key
}

// DefaultRules are evaluated in order and the first match wins. Specific phrases precede the generic words they
// contain, e.g. "high hip" before "hip" and "forearm" before "arm".
var DefaultRules = []Rule{
	Cosmetic(`\bbase\b`),
	Cosmetic(`\b(foot|feet|toes?|heels?|arch|nails?|thumbs?|knuckles?)\b`),
	Keyword(`\b(high|upper) hips?\b`, measurement.HighHip),
	Keyword(`\bunder ?bust\b`, measurement.UnderBust),
	Keyword(`\b(chest|bust|breasts?|pectorals?|pecs?|cleavage|sternum)\b`, measurement.Chest),
	Keyword(`\b(waist|belly|stomach|navel|love handles?|obliques?|side fat)\b`, measurement.Waist),
	Keyword(`\b(outseam|outer leg length)\b`, measurement.Outseam),
	Keyword(`\b(inseam|crotch|leg length|shin length)\b`, measurement.Inseam),
	Keyword(`\b(hips?|glutes?|buttocks?|butt|pelvis|saddlebags?|seat)\b`, measurement.LowHip),
	Keyword(`\btorso (length|height)\b`, measurement.TorsoLength),
	Keyword(`\b(neck|nape|throat|adams apple)\b`, measurement.Neck),
	Keyword(`\b(shoulders?|deltoids?|trapezius|traps)\b`, measurement.Shoulder),
	Keyword(`\b(upper arm|forearm|arm) length\b`, measurement.ArmLength),
	Keyword(`\bforearms?\b`, measurement.Forearm),
	Keyword(`\bwrists?\b`, measurement.Wrist),
	Keyword(`\b(upper arms?|biceps?|triceps?|arms?|elbows?)\b`, measurement.UpperArm),
	Keyword(`\b(hands?|palms?|fingers?)\b`, measurement.HandLength),
	Keyword(`\b(thighs?|quadriceps|quads?|hamstrings?)\b`, measurement.Thigh),
	Keyword(`\bknees?\b`, measurement.Knee),
	Keyword(`\b(calf|calves|achilles)\b`, measurement.Calf),
	Keyword(`\bankles?\b`, measurement.Ankle),
	Keyword(`\bhead (size|width|height|circumference)\b|\b(skull|cranium)\b`, measurement.Head),
}

// DefaultCategories resolves labels no rule recognised. Head, Hand and Base morphs without a keyword are cosmetic.
var DefaultCategories = map[morph.Category]CategoryDefault{
	morph.CategoryChest: {Key: measurement.Chest},
	morph.CategoryWaist: {Key: measurement.Waist},
	morph.CategoryHips:  {Key: measurement.LowHip},
	morph.CategoryNeck:  {Key: measurement.Neck},
	morph.CategoryArms:  {Key: measurement.UpperArm},
	morph.CategoryLegs:  {Key: measurement.Thigh},
	// Rib cage and torso shape follow the chest; only abdominal and whole-body morphs follow the waist.
	morph.CategoryTorso: {
		Key:                measurement.Chest,
		AlternativePattern: regexp.MustCompile(`\b(abdomen|abdominal|body)\b`),
		Alternative:        measurement.Waist,
	},
}

// Classifier is safe for concurrent use; it holds no mutable state.
type Classifier struct {
	rules      []Rule
	categories map[morph.Category]CategoryDefault
}

// New returns a classifier over the given ordered rules and category table.
func New(rules []Rule, categories map[morph.Category]CategoryDefault) *Classifier {
	return &Classifier{rules: rules, categories: categories}
}

var defaultClassifier = New(DefaultRules, DefaultCategories)

// Default returns the classifier over DefaultRules and DefaultCategories.
func Default() *Classifier {
	return defaultClassifier
}

// Classify returns the measurement d influences. ok is false for cosmetic morphs.
func (c *Classifier) Classify(d morph.Definition) (measurement.Key, bool) {
	label := Normalize(d.Label)
	for _, rule := range c.rules {
		if rule.Pattern.MatchString(label) {
			return rule.Key, rule.Key != ""
		}
	}
	fallback, ok := c.categories[d.Category]
	if !ok {
		return "", false
	}
	if fallback.AlternativePattern != nil && fallback.AlternativePattern.MatchString(label) {
		return fallback.Alternative, fallback.Alternative != ""
	}
	return fallback.Key, fallback.Key != ""
}

// Index classifies every definition, grouping morph ids by measurement in catalog order.
func (c *Classifier) Index(definitions []morph.Definition) map[measurement.Key][]int {
	index := make(map[measurement.Key][]int)
	for _, d := range definitions {
		if key, ok := c.Classify(d); ok {
			index[key] = append(index[key], d.ID)
		}
	}
	return index
}

var stripDiacritics = runes.Remove(runes.In(unicode.Mn))

// Normalize case-folds label, strips diacritics and apostrophes and collapses everything else that is not a letter or
// digit into single spaces.
func Normalize(label string) string {
	folded := cases.Fold().String(label)
	if stripped, _, err := transform.String(transform.Chain(norm.NFD, stripDiacritics, norm.NFC), folded); err == nil {
		folded = stripped
	}
	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '\'' || r == '’':
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
