// Package estimate runs the measurement estimator from the command line.
package estimate

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/fitspace/morphsync/internal/backend"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/measurement"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "estimate",
	Title: "Measurements",
}

func init() {
	flags := Estimate.Flags()
	flags.Float64("height", 0, "body height in centimetres")
	flags.Float64("weight", 0, "body weight in kilograms, enables the BMI correction of girths")
	flags.String("gender", "", "male or female")
	flags.String("athletic", "", "athletic level: low, medium or high")
	flags.String("strategy", string(measurement.StrategyHeightRatio), "heightRatio or chained")
	flags.StringArray("set", nil, "known measurement as key=centimetres, repeatable")
}

var Estimate = &cobra.Command{
	Use:     "estimate",
	GroupID: "estimate",
	Short:   "Estimate body measurements",
	Long:    "Estimates every measurement that is not given with --set from height, weight and sex",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			err error
			in  measurement.Input
		)
		if in, err = input(cmd); err != nil {
			return err
		}
		strategy, _ := cmd.Flags().GetString("strategy")
		values := measurement.EstimateMissing(in, measurement.ParseStrategy(strategy))

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // column padding
		for _, d := range measurement.Definitions {
			v, ok := values[d.Key]
			if !ok {
				continue
			}
			source := "estimated"
			if _, known := in.Known[d.Key]; known {
				source = "known"
			}
			_, _ = fmt.Fprintf(w, "%s\t%.1f\t%s\n", d.Key, v, source)
		}
		return errors.Wrap(w.Flush(), "flush table")
	},
}

func input(cmd *cobra.Command) (measurement.Input, error) {
	flags := cmd.Flags()
	in := measurement.Input{Known: measurement.Values{}}
	if height, _ := flags.GetFloat64("height"); height > 0 {
		in.Height = &height
	}
	if weight, _ := flags.GetFloat64("weight"); weight > 0 {
		in.Weight = &weight
	}
	gender, _ := flags.GetString("gender")
	in.Sex = backend.NormalizeGender(gender).Sex()
	athletic, _ := flags.GetString("athletic")
	in.Athletic = measurement.ParseAthleticLevel(athletic)

	known, _ := flags.GetStringArray("set")
	for _, pair := range known {
		raw, value, ok := strings.Cut(pair, "=")
		if !ok {
			return in, errors.New("--set expects key=value, got " + pair)
		}
		key, ok := measurement.ParseKey(raw)
		if !ok {
			return in, errors.New("unknown measurement " + raw)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil || v <= 0 {
			return in, errors.New("measurement must be a positive number, got " + pair)
		}
		in.Known[key] = v
	}
	return in, nil
}
