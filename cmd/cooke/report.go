package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/ahrav/go-cooke/internal/domain"
)

// printer formats numbers in reports with English digit grouping.
var printer = message.NewPrinter(language.English)

func num(v float64) string {
	if math.IsNaN(v) {
		return "-"
	}
	return printer.Sprintf("%.4g", v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// printScores writes one row per scored expert.
func printScores(w io.Writer, t *domain.ScoreTable, weights map[string]float64) error {
	tw := newTable(w)
	header := "EXPERT\tCALIBRATION\tINFO (SEEDS)\tINFO (ALL)\tCOMBINED\tSEEDS"
	if weights != nil {
		header += "\tWEIGHT"
	}
	fmt.Fprintln(tw, header)
	for i, id := range t.Experts {
		row := fmt.Sprintf("%s\t%s\t%s\t%s\t%s\t%s", id,
			num(t.Calibration[i]), num(t.InfoReal[i]), num(t.InfoTotal[i]), num(t.CombScore[i]),
			printer.Sprintf("%d", t.NSeeds[i]))
		if weights != nil {
			row += "\t" + num(weights[id])
		}
		fmt.Fprintln(tw, row)
	}
	if len(t.Unscored) > 0 {
		fmt.Fprintf(tw, "\nnot scored (no seed answers): %s\n", strings.Join(t.Unscored, ", "))
	}
	return tw.Flush()
}

func printDecisionMaker(w io.Writer, name string, dm *domain.DecisionMaker) {
	how := "fixed"
	if dm.Optimised {
		how = "optimised"
	}
	printer.Fprintf(w, "\n%s: alpha %s (%s), calibration %s, information %s / %s, combined %s\n",
		name, num(dm.Alpha), how,
		num(dm.Scores.Calibration), num(dm.Scores.InfoReal), num(dm.Scores.InfoTotal), num(dm.Scores.CombScore))
	if len(dm.NoConsensus) > 0 {
		fmt.Fprintf(w, "no consensus on items: %s\n", strings.Join(dm.NoConsensus, ", "))
	}
}

func printRobustness(w io.Writer, t *domain.RobustnessTable) error {
	if t == nil {
		return nil
	}
	printer.Fprintf(w, "\nrobustness, %s left out (%d combinations)\n", t.Kind, t.Len())
	tw := newTable(w)
	fmt.Fprintln(tw, "EXCLUDED\tCALIBRATION\tINFO (SEEDS)\tINFO (ALL)")
	for _, row := range t.Rows {
		excluded := strings.Join(row.Excluded, ", ")
		if excluded == "" {
			excluded = "(none)"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", excluded, num(row.Score.Calibration), num(row.Score.InfoReal), num(row.Score.InfoTotal))
	}
	return tw.Flush()
}

// printResult writes the full report of a calculation.
func printResult(w io.Writer, r *domain.Result) error {
	if r.Scores != nil {
		if err := printScores(w, r.Scores, r.Weights); err != nil {
			return err
		}
	}
	if r.DecisionMaker != nil {
		printDecisionMaker(w, r.Settings.DisplayName(), r.DecisionMaker)
	}
	if err := printRobustness(w, r.ItemRobustness); err != nil {
		return err
	}
	if err := printRobustness(w, r.ExpertRobustness); err != nil {
		return err
	}
	for _, msg := range r.Warnings {
		fmt.Fprintf(w, "warning: %s\n", msg)
	}
	return nil
}

// pathKey escapes an id for use as one sjson path component.
var pathKey = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`).Replace

// resultDoc builds the JSON form of a result. NaN is written as null.
type resultDoc struct {
	raw []byte
	err error
}

func (d *resultDoc) set(path string, v any) {
	if d.err != nil {
		return
	}
	if f, ok := v.(float64); ok {
		v = nullable(f)
	}
	d.raw, d.err = sjson.SetBytes(d.raw, path, v)
}

func (d *resultDoc) robustness(key string, t *domain.RobustnessTable) {
	if t == nil {
		return
	}
	d.set(key, []any{})
	for _, row := range t.Rows {
		excluded := row.Excluded
		if excluded == nil {
			excluded = []string{}
		}
		d.set(key+".-1", map[string]any{
			"excluded":    excluded,
			"calibration": nullable(row.Score.Calibration),
			"info_real":   nullable(row.Score.InfoReal),
			"info_total":  nullable(row.Score.InfoTotal),
		})
	}
}

// nullable maps NaN and infinities to nil, which encodes as null.
func nullable(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

// encodeResult renders r as indented JSON.
func encodeResult(r *domain.Result) ([]byte, error) {
	d := &resultDoc{raw: []byte("{}")}
	d.set("run_id", r.RunID)
	d.set("settings", r.Settings)

	if r.Scores != nil {
		d.set("experts", map[string]any{})
		for i, id := range r.Scores.Experts {
			prefix := "experts." + pathKey(id) + "."
			d.set(prefix+"calibration", r.Scores.Calibration[i])
			d.set(prefix+"info_real", r.Scores.InfoReal[i])
			d.set(prefix+"info_total", r.Scores.InfoTotal[i])
			d.set(prefix+"comb_score", r.Scores.CombScore[i])
			d.set(prefix+"n_seeds", r.Scores.NSeeds[i])
			if w, ok := r.Weights[id]; ok {
				d.set(prefix+"weight", w)
			}
		}
	}

	if dm := r.DecisionMaker; dm != nil {
		d.set("decision_maker.alpha", dm.Alpha)
		d.set("decision_maker.optimised", dm.Optimised)
		d.set("decision_maker.calibration", dm.Scores.Calibration)
		d.set("decision_maker.info_real", dm.Scores.InfoReal)
		d.set("decision_maker.info_total", dm.Scores.InfoTotal)
		d.set("decision_maker.comb_score", dm.Scores.CombScore)
		d.set("decision_maker.quantiles", map[string]any{})
		for _, id := range dm.ItemIDs {
			values, _ := dm.Quantiles(id)
			row := make([]any, len(values))
			for k, v := range values {
				row[k] = nullable(v)
			}
			d.set("decision_maker.quantiles."+pathKey(id), row)
		}
		if len(dm.NoConsensus) > 0 {
			d.set("decision_maker.no_consensus", dm.NoConsensus)
		}
	}

	d.robustness("item_robustness", r.ItemRobustness)
	d.robustness("expert_robustness", r.ExpertRobustness)
	if len(r.Warnings) > 0 {
		d.set("warnings", r.Warnings)
	}
	if d.err != nil {
		return nil, fmt.Errorf("encode result: %w", d.err)
	}
	return pretty.PrettyOptions(d.raw, &pretty.Options{Width: 120, Indent: "  "}), nil
}

func writeResult(path string, r *domain.Result) error {
	data, err := encodeResult(r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	return nil
}
