package morph_test

import (
	"testing"

	"github.com/fitspace/morphsync/internal/morph"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	c := morph.Default()
	require.GreaterOrEqual(t, c.Len(), 170)

	seen := map[int]bool{}
	for _, d := range c.Definitions() {
		require.False(t, seen[d.ID], "duplicate id %d", d.ID)
		seen[d.ID] = true
		require.Contains(t, morph.Categories, d.Category)
		require.NotEmpty(t, d.Label)
		require.LessOrEqual(t, d.Min, d.Max)
	}

	for _, id := range []int{morph.FeminineBodyID, morph.FeminineHeadID, morph.MasculineBodyID, morph.MasculineHeadID} {
		d, ok := c.Lookup(id)
		require.True(t, ok)
		require.Equal(t, morph.CategoryBase, d.Category)
		_, hasKey := c.BackendKeyFor(id)
		require.False(t, hasKey, "base morphs are render-only")
	}
}

func TestBackendKeyMapping(t *testing.T) {
	c := morph.Default()

	id, ok := c.MorphIDFor("lowerBellyMoveUpDown")
	require.True(t, ok)
	key, ok := c.BackendKeyFor(id)
	require.True(t, ok)
	require.Equal(t, "lowerBellyMoveUpDown", key)

	_, ok = c.MorphIDFor("tailLength")
	require.False(t, ok)

	keys := c.BackendKeys()
	require.Less(t, len(keys), c.Len(), "only a subset of morphs round-trips through the backend")
	for key, id := range keys {
		got, ok := c.BackendKeyFor(id)
		require.True(t, ok)
		require.Equal(t, key, got)
	}
}

func TestSuggestBackendKey(t *testing.T) {
	c := morph.Default()

	got, ok := c.SuggestBackendKey("waistWidht")
	require.True(t, ok)
	require.Equal(t, "waistWidth", got)

	_, ok = c.SuggestBackendKey("somethingEntirelyDifferent")
	require.False(t, ok)
}

func TestNew_rejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name        string
		definitions []morph.Definition
	}{
		{
			name: "duplicate id",
			definitions: []morph.Definition{
				{ID: 1, Category: morph.CategoryWaist, Label: "a", Max: 1},
				{ID: 1, Category: morph.CategoryWaist, Label: "b", Max: 1},
			},
		},
		{
			name: "duplicate backend key",
			definitions: []morph.Definition{
				{ID: 1, Category: morph.CategoryWaist, Label: "a", BackendKey: "k", Max: 1},
				{ID: 2, Category: morph.CategoryWaist, Label: "b", BackendKey: "k", Max: 1},
			},
		},
		{
			name:        "unknown category",
			definitions: []morph.Definition{{ID: 1, Category: "Tail", Label: "a", Max: 1}},
		},
		{
			name:        "inverted range",
			definitions: []morph.Definition{{ID: 1, Category: morph.CategoryLegs, Label: "a", Min: 1, Max: -1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := morph.New(tt.definitions)
			require.ErrorIs(t, err, morph.ErrInvalidCatalog)
		})
	}
}

func TestParse_invalidYAML(t *testing.T) {
	_, err := morph.Parse([]byte("morphs: [{id: nope"))
	require.ErrorIs(t, err, morph.ErrInvalidCatalog)
}

func TestNewAttributes(t *testing.T) {
	c := morph.Default()
	a := c.NewAttributes()
	b := c.NewAttributes()
	require.Len(t, a, c.Len())

	a[10].Value = 99
	require.NotEqual(t, a[10].Value, b[10].Value, "copies carry independent values")

	for _, attr := range b {
		if attr.Category == morph.CategoryBase {
			require.InDelta(t, 0.0, attr.Value, 0)
		} else {
			require.InDelta(t, morph.NeutralValue, attr.Value, 0)
		}
	}
}

func TestBaseBodyValues(t *testing.T) {
	tests := []struct {
		name   string
		preset morph.BasePreset
		want   map[int]float64
	}{
		{
			name:   "feminine",
			preset: morph.BaseFeminine,
			want: map[int]float64{
				morph.FeminineBodyID: 100, morph.FeminineHeadID: 100,
				morph.MasculineBodyID: 0, morph.MasculineHeadID: 0,
			},
		},
		{
			name:   "masculine",
			preset: morph.BaseMasculine,
			want: map[int]float64{
				morph.FeminineBodyID: 0, morph.FeminineHeadID: 0,
				morph.MasculineBodyID: 100, morph.MasculineHeadID: 100,
			},
		},
		{
			name:   "unknown preset falls back to feminine",
			preset: morph.BasePreset(42),
			want: map[int]float64{
				morph.FeminineBodyID: 100, morph.FeminineHeadID: 100,
				morph.MasculineBodyID: 0, morph.MasculineHeadID: 0,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, morph.BaseBodyValues(tt.preset))
		})
	}
}

func TestApplyBaseBody(t *testing.T) {
	attrs := morph.Default().NewAttributes()
	require.True(t, morph.ApplyBaseBody(attrs, morph.BaseMasculine))
	require.False(t, morph.ApplyBaseBody(attrs, morph.BaseMasculine), "second application is a no-op")
	require.True(t, morph.ApplyBaseBody(attrs, morph.BaseFeminine))

	values := map[int]float64{}
	for _, a := range attrs {
		if a.Category == morph.CategoryBase {
			values[a.ID] = a.Value
		}
	}
	require.Equal(t, morph.BaseBodyValues(morph.BaseFeminine), values)
}
