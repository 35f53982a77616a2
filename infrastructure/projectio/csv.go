package projectio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// FormatCSV names the CSV import.
const FormatCSV = "csv"

// CSVOptions configures ReadCSV.
type CSVOptions struct {
	// Separator splits the columns of both files. Zero means ','.
	Separator rune

	// SkipAssessmentRows and SkipItemRows drop leading lines before the
	// header of each file.
	SkipAssessmentRows int
	SkipItemRows       int
}

var (
	itemColumns           = []string{"itemid", "realization", "scale", "question", "unit"}
	mandatoryItemColumns  = []string{"itemid", "realization", "scale"}
	mandatoryAssessColumn = []string{"expertid", "itemid"}
)

// ReadCSV builds a project from an items file and an assessments file.
//
// The items file has the columns itemid, realization and scale, plus
// optional question and unit columns. An empty realization makes a target
// item. The assessments file has the columns expertid and itemid; every
// other column header is a quantile level in [0, 1], strictly increasing.
// Experts are created in order of first appearance and named after their id.
func ReadCSV(assessments, items io.Reader, opts CSVOptions) (*domain.Project, error) {
	m, err := readCSVItems(items, opts)
	if err != nil {
		return nil, ports.NewIOError(FormatCSV, err)
	}
	if err := readCSVAssessments(assessments, opts, m); err != nil {
		return nil, ports.NewIOError(FormatCSV, err)
	}
	p, err := m.project()
	if err != nil {
		return nil, ports.NewIOError(FormatCSV, err)
	}
	return p, nil
}

func newCSVReader(r io.Reader, opts CSVOptions) *csv.Reader {
	cr := csv.NewReader(r)
	if opts.Separator != 0 {
		cr.Comma = opts.Separator
	}
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	return cr
}

// readRecords returns the header, folded to lower case, and the data rows.
func readRecords(r io.Reader, opts CSVOptions, skip int) ([]string, [][]string, error) {
	records, err := newCSVReader(r, opts).ReadAll()
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ports.ErrMalformedInput, err)
	}
	if len(records) <= skip {
		return nil, nil, fmt.Errorf("%w: no header row", ports.ErrMalformedInput)
	}
	records = records[skip:]
	header := make([]string, len(records[0]))
	for k, h := range records[0] {
		header[k] = folder.String(strings.TrimSpace(h))
	}
	return header, records[1:], nil
}

func columnPositions(header, wanted, mandatory []string, file string) (map[string]int, error) {
	pos := map[string]int{}
	for _, key := range wanted {
		if k := slices.Index(header, key); k >= 0 {
			pos[key] = k
		}
	}
	for _, key := range mandatory {
		if _, ok := pos[key]; !ok {
			return nil, fmt.Errorf("%w: did not find column %q in csv with %s", ports.ErrMalformedInput, key, file)
		}
	}
	return pos, nil
}

func cell(row []string, k int) string {
	if k < 0 || k >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[k])
}

func readCSVItems(r io.Reader, opts CSVOptions) (*saveModel, error) {
	header, rows, err := readRecords(r, opts, opts.SkipItemRows)
	if err != nil {
		return nil, err
	}
	pos, err := columnPositions(header, itemColumns, mandatoryItemColumns, "items")
	if err != nil {
		return nil, err
	}
	get := func(row []string, key string) string {
		k, ok := pos[key]
		if !ok {
			return ""
		}
		return cell(row, k)
	}

	m := &saveModel{}
	for n, row := range rows {
		it := savedItem{
			id:          get(row, "itemid"),
			scale:       get(row, "scale"),
			question:    get(row, "question"),
			unit:        get(row, "unit"),
			realization: math.NaN(),
			bounds:      [2]float64{math.NaN(), math.NaN()},
			overshoots:  [2]float64{math.NaN(), math.NaN()},
		}
		if s := get(row, "realization"); s != "" {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%w: items row %d: realization %q", ports.ErrMalformedInput, n+1, s)
			}
			it.realization = v
		}
		m.items = append(m.items, it)
	}
	return m, nil
}

func readCSVAssessments(r io.Reader, opts CSVOptions, m *saveModel) error {
	if len(m.items) == 0 {
		return errors.New("the items have not been read")
	}
	header, rows, err := readRecords(r, opts, opts.SkipAssessmentRows)
	if err != nil {
		return err
	}
	pos, err := columnPositions(header, mandatoryAssessColumn, mandatoryAssessColumn, "assessments")
	if err != nil {
		return err
	}

	var (
		quantiles []float64
		valueCols []int
	)
	for k, h := range header {
		if k == pos["expertid"] || k == pos["itemid"] {
			continue
		}
		q, err := strconv.ParseFloat(h, 64)
		if err != nil {
			return fmt.Errorf("%w: column %q is not a quantile level", ports.ErrMalformedInput, h)
		}
		if q < 0 || q > 1 {
			return fmt.Errorf("%w: expected a quantile value in between 0 and 1, got %g", ports.ErrMalformedInput, q)
		}
		if len(quantiles) > 0 && q <= quantiles[len(quantiles)-1] {
			return fmt.Errorf("%w: quantiles should be strictly increasing", ports.ErrMalformedInput)
		}
		quantiles = append(quantiles, q)
		valueCols = append(valueCols, k)
	}
	for k := range m.items {
		m.items[k].quantiles = quantiles
	}

	known := map[string]bool{}
	for _, it := range m.items {
		known[it.id] = true
	}
	seen := map[string]bool{}
	for n, row := range rows {
		expert := cell(row, pos["expertid"])
		item := cell(row, pos["itemid"])
		if !known[item] {
			return fmt.Errorf("item %q in assessments not found in list of given items: %w", item, domain.ErrUnknownItem)
		}
		if !seen[expert] {
			seen[expert] = true
			m.experts = append(m.experts, savedExpert{id: expert, name: expert, userWeight: math.NaN()})
		}
		if len(row) != len(header) {
			return fmt.Errorf("%w: assessments row %d: got %d estimates for %d quantiles",
				ports.ErrMalformedInput, n+1, len(row)-2, len(quantiles))
		}
		values := make([]float64, len(valueCols))
		for k, col := range valueCols {
			s := cell(row, col)
			if s == "" {
				values[k] = math.NaN()
				continue
			}
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return fmt.Errorf("%w: assessments row %d: value %q", ports.ErrMalformedInput, n+1, s)
			}
			values[k] = v
		}
		m.assessments = append(m.assessments, savedAssessment{expert: expert, item: item, values: values})
	}
	return nil
}
