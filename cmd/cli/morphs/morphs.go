// Package morphs inspects the embedded morph catalog and how its labels are classified to measurements.
package morphs

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/fitspace/morphsync/internal/bridge"
	"github.com/fitspace/morphsync/internal/classify"
	"github.com/fitspace/morphsync/internal/errors"
	"github.com/fitspace/morphsync/internal/morph"
	"github.com/spf13/cobra"
)

var Group = &cobra.Group{
	ID:    "morphs",
	Title: "Morph catalog",
}

func init() {
	Catalog.Flags().String("category", "", "only list morphs of this category, e.g. Waist")
	Classify.Flags().String("category", "", "category used when no label rule matches")
}

var Catalog = &cobra.Command{
	Use:     "catalog",
	GroupID: "morphs",
	Short:   "List the morph catalog",
	Long:    "Lists every morph with its backend key and the measurement it drives",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			err      error
			category morph.Category
		)
		if category, err = categoryFlag(cmd); err != nil {
			return err
		}
		catalog := morph.Default()
		b := bridge.New(catalog, classify.Default(), bridge.DefaultSlopes)

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // column padding
		_, _ = fmt.Fprintln(w, "ID\tCATEGORY\tLABEL\tBACKEND KEY\tMEASUREMENT\tRANGE")
		for _, d := range catalog.Definitions() {
			if category != "" && d.Category != category {
				continue
			}
			key, _ := b.MeasurementFor(d.ID)
			_, _ = fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%g..%g\n",
				d.ID, d.Category, d.Label, dash(d.BackendKey), dash(string(key)), d.Min, d.Max)
		}
		return errors.Wrap(w.Flush(), "flush table")
	},
}

var Classify = &cobra.Command{
	Use:     "classify <label>...",
	GroupID: "morphs",
	Short:   "Classify morph labels",
	Long:    "Prints the measurement each label would drive, or cosmetic when it drives none",
	Args:    cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var (
			err      error
			category morph.Category
		)
		if category, err = categoryFlag(cmd); err != nil {
			return err
		}
		classifier := classify.Default()
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0) //nolint:mnd // column padding
		for _, label := range args {
			result := "cosmetic"
			if key, ok := classifier.Classify(morph.Definition{Label: label, Category: category}); ok {
				result = string(key)
			}
			_, _ = fmt.Fprintf(w, "%s\t%s\n", label, result)
		}
		return errors.Wrap(w.Flush(), "flush table")
	},
}

func categoryFlag(cmd *cobra.Command) (morph.Category, error) {
	raw, err := cmd.Flags().GetString("category")
	if err != nil {
		return "", errors.Wrap(err, "read category flag")
	}
	if raw == "" {
		return "", nil
	}
	for _, c := range morph.Categories {
		if strings.EqualFold(string(c), raw) {
			return c, nil
		}
	}
	return "", errors.New("unknown category " + raw)
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
