package models_test

import (
	"testing"

	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/fitspace/morphsync/internal/morph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAvatarConfiguration_Clone(t *testing.T) {
	height := 170.0
	original := &models.AvatarConfiguration{
		Name:        "Mine",
		Basic:       models.BasicMeasurements{Height: &height},
		Body:        measurement.Values{measurement.Waist: 80},
		Baseline:    measurement.Values{measurement.Waist: 71.4},
		MorphValues: morph.Default().NewAttributes(),
		QuickSettings: &models.QuickModeSettings{
			Measurements: measurement.Values{measurement.Waist: 80},
			Hair:         map[string]string{"color": "brown"},
		},
		Clothing: map[string]models.ClothingSelection{"top": {ItemID: "shirt-1"}},
	}

	clone := original.Clone()
	*clone.Basic.Height = 180
	clone.Body[measurement.Waist] = 90
	clone.MorphValues[0].Value = 99
	clone.QuickSettings.Measurements[measurement.Waist] = 90
	clone.QuickSettings.Hair["color"] = "red"
	clone.Clothing["top"] = models.ClothingSelection{ItemID: "shirt-2"}

	require.InDelta(t, 170.0, *original.Basic.Height, 1e-9)
	assert.InDelta(t, 80.0, original.Body[measurement.Waist], 1e-9)
	assert.NotEqual(t, 99.0, original.MorphValues[0].Value)
	assert.InDelta(t, 80.0, original.QuickSettings.Measurements[measurement.Waist], 1e-9)
	assert.Equal(t, "brown", original.QuickSettings.Hair["color"])
	assert.Equal(t, "shirt-1", original.Clothing["top"].ItemID)

	var nilConfig *models.AvatarConfiguration
	assert.Nil(t, nilConfig.Clone())
}

func TestAvatarConfiguration_MorphDerived(t *testing.T) {
	tests := []struct {
		name   string
		config models.AvatarConfiguration
		want   bool
	}{
		{"manual", models.AvatarConfiguration{}, false},
		{"quick", models.AvatarConfiguration{QuickMode: true}, true},
		{"quick preset", models.AvatarConfiguration{QuickMode: true, CreationMode: models.CreationModePreset}, true},
		{"scanned", models.AvatarConfiguration{QuickMode: true, CreationMode: models.CreationModeScan}, false},
		{
			"scan in basic measurements",
			models.AvatarConfiguration{
				QuickMode: true,
				Basic:     models.BasicMeasurements{CreationMode: models.CreationModeScan},
			},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.config.MorphDerived())
		})
	}
}

func TestGender(t *testing.T) {
	assert.Equal(t, morph.BaseMasculine, models.GenderMale.BasePreset())
	assert.Equal(t, morph.BaseFeminine, models.GenderFemale.BasePreset())
	assert.Equal(t, morph.BaseFeminine, models.GenderUnknown.BasePreset())
	assert.Equal(t, measurement.SexUnspecified, models.GenderUnknown.Sex())
}

func TestUser(t *testing.T) {
	assert.True(t, models.User{}.Guest())
	assert.False(t, models.User{ID: "u1"}.Complete())
	assert.True(t, models.User{ID: "u1", Email: "a@b.c", Token: "t", SessionID: "s"}.Complete())
}

func TestParseDirtySection(t *testing.T) {
	section, ok := models.ParseDirtySection("quickMode.hair")
	require.True(t, ok)
	assert.Equal(t, models.SectionQuickModeHair, section)

	_, ok = models.ParseDirtySection("quickMode")
	assert.False(t, ok)
}
