package backend_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/fitspace/morphsync/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecord_UnmarshalJSON(t *testing.T) {
	data := `{
		"id": 12,
		"userId": "user-1",
		"name": "",
		"gender": "Non_Binary",
		"ageRange": "25-35",
		"source": "WEB",
		"quickMode": true,
		"basicMeasurements": {"height": "170", "weight": "heavy", "creationMode": "scan"},
		"bodyMeasurements": {"waist": 80, "Hips": 101.5, "elbowGirth": 25},
		"morphTargets": [
			{"id": "waistWidth", "sliderValue": 60},
			{"id": "17", "backendKey": "lowerBellyMoveUpDown", "value": "40"},
			{"id": "hipWidth", "unrealValue": 0.5},
			{"id": "broken"}
		],
		"quickModeSettings": {
			"bodyShape": "pear",
			"athleticLevel": "HIGH",
			"measurements": {"chest": 92},
			"hair": {"color": "brown"},
			"updatedAt": "2024-05-01T10:00:00Z"
		},
		"clothingSelections": {"top": {"itemId": 3, "subCategory": "shirts"}},
		"updatedAt": "not a date"
	}`
	var r backend.Record
	require.NoError(t, json.Unmarshal([]byte(data), &r))

	assert.Equal(t, "12", r.ID)
	assert.Equal(t, models.DefaultAvatarName, r.Name)
	assert.Equal(t, models.GenderUnknown, r.Gender)
	assert.Equal(t, models.AgeRange("30-39"), r.AgeRange)
	assert.Equal(t, models.Source("web"), r.Source)
	assert.Equal(t, models.CreationModeScan, r.CreationMode)
	assert.Equal(t, models.CreationModeScan, r.BasicMeasurements.CreationMode)
	require.NotNil(t, r.BasicMeasurements.Height)
	assert.InDelta(t, 170.0, *r.BasicMeasurements.Height, 1e-9)
	assert.Nil(t, r.BasicMeasurements.Weight)
	assert.Equal(t, measurement.Values{measurement.Waist: 80, measurement.LowHip: 101.5}, r.BodyMeasurements)

	require.Len(t, r.MorphTargets, 3)
	byKey := map[string]backend.MorphTarget{}
	for _, target := range r.MorphTargets {
		byKey[target.Key()] = target
	}
	assert.InDelta(t, 60.0, *byKey["waistWidth"].Value, 1e-9)
	assert.InDelta(t, 40.0, *byKey["lowerBellyMoveUpDown"].Value, 1e-9)
	assert.Nil(t, byKey["hipWidth"].Value)
	assert.InDelta(t, 0.5, *byKey["hipWidth"].UnrealValue, 1e-9)

	require.NotNil(t, r.QuickModeSettings)
	assert.Equal(t, measurement.AthleticHigh, r.QuickModeSettings.AthleticLevel)
	assert.Equal(t, measurement.Values{measurement.Chest: 92}, r.QuickModeSettings.Measurements)
	assert.Equal(t, "brown", r.QuickModeSettings.Hair["color"])
	assert.Equal(t, models.ClothingSelection{ItemID: "3", SubCategory: "shirts"}, r.ClothingSelections["top"])
	assert.True(t, r.UpdatedAt.IsZero())

	assert.NotEmpty(t, r.Warnings)
}

func TestRecord_morphTargetsMapForm(t *testing.T) {
	var r backend.Record
	require.NoError(t, json.Unmarshal([]byte(`{"id":"a","quickMode":true,"morphTargets":{
		"waistWidth": 55,
		"hipWidth": {"sliderValue": 45, "unrealValue": -0.1},
		"bad": "x"
	}}`), &r))

	require.Len(t, r.MorphTargets, 2)
	assert.Equal(t, "hipWidth", r.MorphTargets[0].ID)
	assert.Equal(t, "waistWidth", r.MorphTargets[1].ID)
	assert.Equal(t, models.CreationModeQuick, r.CreationMode)
}

func TestNormalizeAgeRange(t *testing.T) {
	tests := []struct {
		in   string
		want models.AgeRange
	}{
		{"Young_Adult", "young_adult"},
		{"20-29", "20-29"},
		{"25-35", "30-39"},
		{"10-14", "15-19"},
		{"18-24", "20-29"},
		{"95-120", "90-99"},
		{"65+", "60-69"},
		{"35-25", ""},
		{"old", ""},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, backend.NormalizeAgeRange(tt.in))
		})
	}
}

func TestNormalizeEnums(t *testing.T) {
	assert.Equal(t, models.GenderMale, backend.NormalizeGender(" Male "))
	assert.Equal(t, models.GenderUnknown, backend.NormalizeGender("unspecified"))
	assert.Equal(t, models.CreationModeImport, backend.NormalizeCreationMode("IMPORT"))
	assert.Equal(t, models.CreationMode(""), backend.NormalizeCreationMode("sculpted"))
	assert.Equal(t, models.Source("kiosk"), backend.NormalizeSource("kiosk"))
	assert.Equal(t, models.Source(""), backend.NormalizeSource("fax"))
}

func TestPayload_SanitizedQuickModeSettings(t *testing.T) {
	tests := []struct {
		name  string
		quick *backend.QuickModeSettings
		want  map[string]any
	}{
		{
			name: "only stored fields",
			quick: backend.WireQuickModeSettings(&models.QuickModeSettings{
				BodyShape:    " Pear ",
				Measurements: measurement.Values{measurement.Waist: 80},
				Skin:         map[string]string{"tone": "light"},
				Hair:         map[string]string{"color": "brown"},
				UpdatedAt:    time.Now(),
			}),
			want: map[string]any{"bodyShape": "pear", "measurements": map[string]any{"waist": 80.0}},
		},
		{
			name:  "athletic level",
			quick: &backend.QuickModeSettings{AthleticLevel: "High"},
			want:  map[string]any{"athleticLevel": "high"},
		},
		{
			name:  "empty settings are omitted",
			quick: backend.WireQuickModeSettings(&models.QuickModeSettings{Skin: map[string]string{"tone": "light"}}),
		},
		{
			name: "absent",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := json.Marshal(backend.Payload{QuickModeSettings: tt.quick}.Sanitized())
			require.NoError(t, err)
			var body map[string]any
			require.NoError(t, json.Unmarshal(data, &body))
			if tt.want == nil {
				assert.NotContains(t, body, "quickModeSettings")
				return
			}
			assert.Equal(t, tt.want, body["quickModeSettings"])
		})
	}
}

func TestPayload_SanitizedCreationMode(t *testing.T) {
	tests := []struct {
		name      string
		top       models.CreationMode
		measured  models.CreationMode
		wantTop   models.CreationMode
		wantBasic models.CreationMode
		wantQuick bool
	}{
		{"agreeing", models.CreationModeScan, models.CreationModeScan, models.CreationModeScan, models.CreationModeScan, false},
		{"conflicting", models.CreationModeManual, models.CreationModeScan, models.CreationModeManual, "", false},
		{"measured only", "", models.CreationModePreset, "", models.CreationModePreset, false},
		{"quick", models.CreationModeQuick, models.CreationModeQuick, "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := backend.Payload{
				CreationMode:      tt.top,
				BasicMeasurements: models.BasicMeasurements{CreationMode: tt.measured},
			}.Sanitized()
			assert.Equal(t, tt.wantTop, got.CreationMode)
			assert.Equal(t, tt.wantBasic, got.BasicMeasurements.CreationMode)
			assert.Equal(t, tt.wantQuick, got.QuickMode)
		})
	}
}
