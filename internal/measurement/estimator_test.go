package measurement_test

import (
	"testing"

	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func TestEstimateMissing_neverOverwrites(t *testing.T) {
	for _, strategy := range []measurement.Strategy{measurement.StrategyHeightRatio, measurement.StrategyChained} {
		t.Run(string(strategy), func(t *testing.T) {
			got := measurement.EstimateMissing(measurement.Input{
				Known:  measurement.Values{measurement.Waist: 80},
				Height: ptr(180),
				Sex:    measurement.SexMale,
			}, strategy)

			require.InDelta(t, 80.0, got[measurement.Waist], 0)
			require.Len(t, got, len(measurement.Definitions), "every key should be populated")
		})
	}
}

func TestEstimateMissing_heightRatio(t *testing.T) {
	got := measurement.EstimateMissing(measurement.Input{
		Known:  measurement.Values{measurement.Waist: 80},
		Height: ptr(180),
		Sex:    measurement.SexMale,
	}, measurement.StrategyHeightRatio)

	for _, d := range measurement.Definitions {
		if d.Key == measurement.Waist {
			continue
		}
		assert.InDelta(t, measurement.Round1(180*d.MaleRatio), got[d.Key], 1e-9, "key %s", d.Key)
	}
}

func TestEstimateMissing_inseamBySex(t *testing.T) {
	tests := []struct {
		name   string
		height float64
		sex    measurement.Sex
		want   float64
	}{
		{name: "male", height: 170, sex: measurement.SexMale, want: 76.5},
		{name: "female", height: 170, sex: measurement.SexFemale, want: 74.8},
		{name: "unspecified averages both tables", height: 180, sex: measurement.SexUnspecified, want: 80.1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := measurement.EstimateMissing(measurement.Input{Height: ptr(tt.height), Sex: tt.sex},
				measurement.StrategyHeightRatio)
			require.InDelta(t, tt.want, got[measurement.Inseam], 1e-9)
		})
	}
}

func TestEstimateMissing_withoutHeight(t *testing.T) {
	known := measurement.Values{measurement.Chest: 100}
	got := measurement.EstimateMissing(measurement.Input{Known: known, Weight: ptr(80)}, measurement.StrategyChained)
	require.Equal(t, known, got)

	got[measurement.Waist] = 1
	require.NotContains(t, known, measurement.Waist, "result must not alias the input")
}

func TestEstimateMissing_bmiScalesGirthsOnly(t *testing.T) {
	height := 180.0
	heavy := measurement.EstimateMissing(measurement.Input{Height: &height, Weight: ptr(110), Sex: measurement.SexMale},
		measurement.StrategyHeightRatio)
	plain := measurement.EstimateMissing(measurement.Input{Height: &height, Sex: measurement.SexMale},
		measurement.StrategyHeightRatio)

	// BMI 33.95 saturates at +7%.
	require.InDelta(t, 0.07, measurement.BMIAdjustment(height, 110), 1e-9)
	require.InDelta(t, measurement.Round1(180*0.46*1.07), heavy[measurement.Waist], 1e-9)
	require.Greater(t, heavy[measurement.Chest], plain[measurement.Chest])
	require.InDelta(t, plain[measurement.Inseam], heavy[measurement.Inseam], 0, "lengths ignore weight")
	require.InDelta(t, plain[measurement.Shoulder], heavy[measurement.Shoulder], 0, "lengths ignore weight")
}

func TestBMIAdjustment(t *testing.T) {
	tests := []struct {
		name           string
		height, weight float64
		want           float64
	}{
		{name: "reference BMI", height: 200, weight: 88, want: 0},
		{name: "underweight clamps", height: 190, weight: 45, want: -0.05},
		{name: "slightly over", height: 200, weight: 96, want: (24 - 22) * 0.007},
		{name: "unknown weight", height: 180, weight: 0, want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.InDelta(t, tt.want, measurement.BMIAdjustment(tt.height, tt.weight), 1e-9)
		})
	}
}

func TestEstimateMissing_chained(t *testing.T) {
	height := 170.0
	got := measurement.EstimateMissing(measurement.Input{
		Known:    measurement.Values{measurement.LowHip: 100, measurement.Waist: 85, measurement.Forearm: 26},
		Height:   &height,
		Sex:      measurement.SexFemale,
		Athletic: measurement.AthleticHigh,
	}, measurement.StrategyChained)

	softness := measurement.Softness(85, height)
	require.InDelta(t, 0.0, softness-(85.0/170-0.48)*20, 1e-9)
	require.InDelta(t, measurement.Round1(100*0.92+softness), got[measurement.HighHip], 1e-9)
	require.InDelta(t, measurement.Round1(26*0.65), got[measurement.Wrist], 1e-9)
	require.InDelta(t, 26.0, got[measurement.Forearm], 0)

	chest := got[measurement.Chest]
	require.InDelta(t, measurement.Round1(chest*0.38+1.5*0.6), got[measurement.Neck], 1e-9)
}

func TestSoftnessClamps(t *testing.T) {
	require.InDelta(t, 1.5, measurement.Softness(150, 160), 1e-9)
	require.InDelta(t, -1.5, measurement.Softness(50, 190), 1e-9)
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		in     string
		want   measurement.Key
		wantOK bool
	}{
		{in: "lowHip", want: measurement.LowHip, wantOK: true},
		{in: "LOWHIP", want: measurement.LowHip, wantOK: true},
		{in: "waistCircumference", want: measurement.Waist, wantOK: true},
		{in: " hips ", want: measurement.LowHip, wantOK: true},
		{in: "tail", wantOK: false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := measurement.ParseKey(tt.in)
			require.Equal(t, tt.wantOK, ok)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestParseAthleticLevel(t *testing.T) {
	require.Equal(t, measurement.AthleticHigh, measurement.ParseAthleticLevel(" High "))
	require.Equal(t, measurement.AthleticLevel(""), measurement.ParseAthleticLevel("extreme"))
}
