package projectio

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

// FormatExcalibur names the Excalibur .dtt/.rls pair.
const FormatExcalibur = "excalibur"

const (
	maxExpertIDLen = 8
	maxItemIDLen   = 14
	questionWidth  = 173
)

// ExcaliburCodec reads and writes the fixed-width Excalibur files: a .dtt
// file with one line per expert and item, and a .rls file with one line per
// item holding the realization. Missing values are written as -999.5 and
// anything in [-1000, -990] reads as missing. Expert names are not stored,
// so experts read back are named after their id.
type ExcaliburCodec struct{}

// WritePair writes the actual experts and items of p. Every item must use
// the same quantiles. Expert ids are cut to 8 and item ids to 14 characters.
func (ExcaliburCodec) WritePair(dtt, rls io.Writer, p *domain.Project) error {
	m, err := modelFromProject(p)
	if err != nil {
		return ports.NewIOError(FormatExcalibur, err)
	}
	quantiles, err := m.commonQuantiles()
	if err != nil {
		return ports.NewIOError(FormatExcalibur, err)
	}
	if quantiles == nil {
		quantiles = p.Quantiles()
	}

	dw := bufio.NewWriter(dtt)
	percentages := make([]string, len(quantiles))
	for k, q := range quantiles {
		percentages[k] = fmt.Sprintf("%2d", int(math.Round(100*q)))
	}
	fmt.Fprintf(dw, "* CLASS ASCII OUTPUT FILE. NQ= %3d   QU=  %s\n", len(quantiles), strings.Join(percentages, "  "))

	next := 0
	for e, expert := range m.experts {
		for i, it := range m.items {
			a := m.assessments[next]
			next++
			values := make([]string, len(a.values))
			for k, v := range a.values {
				values[k] = formatScientific(orMissing(v))
			}
			fmt.Fprintf(dw, " %4d %8s %4d %14s %3s %s ",
				e+1, truncate(expert.id, maxExpertIDLen), i+1, truncate(it.id, maxItemIDLen), it.scale, strings.Join(values, " "))
			if it.question != "" && (e == 0 || i == 0) {
				fmt.Fprintf(dw, "%*s ", questionWidth, it.question)
			}
			dw.WriteString("\n")
		}
	}
	if err := dw.Flush(); err != nil {
		return ports.NewIOError(FormatExcalibur, err)
	}

	rw := bufio.NewWriter(rls)
	for i, it := range m.items {
		fmt.Fprintf(rw, " %4d %14s %s %3s %*s \n",
			i+1, truncate(it.id, maxItemIDLen), formatScientific(orMissing(it.realization)), it.scale, questionWidth, it.question)
	}
	if err := rw.Flush(); err != nil {
		return ports.NewIOError(FormatExcalibur, err)
	}
	return nil
}

// ReadPair reads a project from a .dtt and .rls pair.
func (ExcaliburCodec) ReadPair(dtt, rls io.Reader) (*domain.Project, error) {
	m, err := readDTT(dtt)
	if err != nil {
		return nil, ports.NewIOError(FormatExcalibur, err)
	}
	if err := readRLS(rls, m); err != nil {
		return nil, ports.NewIOError(FormatExcalibur, err)
	}
	p, err := m.project()
	if err != nil {
		return nil, ports.NewIOError(FormatExcalibur, err)
	}
	return p, nil
}

// formatScientific renders v with five decimals and a four digit exponent,
// such as " 1.25000e+0001", with a leading space for non-negative values.
func formatScientific(v float64) string {
	s := strconv.FormatFloat(v, 'e', 5, 64)
	mantissa, exp, _ := strings.Cut(s, "e")
	sign := exp[0]
	digits := strings.TrimLeft(exp[1:], "0")
	for len(digits) < 4 {
		digits = "0" + digits
	}
	out := mantissa + "e" + string(sign) + digits
	if v >= 0 {
		out = " " + out
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

// nonBlankLines returns the lines of r that contain more than whitespace.
func nonBlankLines(r io.Reader) ([]string, error) {
	var lines []string
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != "" {
			lines = append(lines, sc.Text())
		}
	}
	return lines, sc.Err()
}

// scaleColumn returns the most common position of the first "uni" or "log"
// over lines. Ties go to the smallest position.
func scaleColumn(lines []string) int {
	counts := map[int]int{}
	for _, line := range lines {
		lower := strings.ToLower(line)
		uni, log := strings.Index(lower, "uni"), strings.Index(lower, "log")
		switch {
		case uni < 0 && log < 0:
		case uni < 0:
			counts[log]++
		case log < 0:
			counts[uni]++
		default:
			counts[min(uni, log)]++
		}
	}
	best, bestCount := -1, 0
	for pos, c := range counts {
		if c > bestCount || (c == bestCount && pos < best) {
			best, bestCount = pos, c
		}
	}
	return best
}

func field(line string, from, to int) string {
	if from >= len(line) {
		return ""
	}
	return strings.TrimSpace(line[from:min(to, len(line))])
}

func malformed(line int, format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ports.ErrMalformedInput, line, fmt.Sprintf(format, args...))
}

func readDTT(r io.Reader) (*saveModel, error) {
	lines, err := nonBlankLines(r)
	if err != nil {
		return nil, err
	}
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: dtt file has no assessments", ports.ErrMalformedInput)
	}

	_, qu, ok := strings.Cut(lines[0], "QU=")
	if !ok {
		return nil, malformed(1, "missing QU= in header")
	}
	var quantiles []float64
	for _, f := range strings.Fields(qu) {
		pct, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, malformed(1, "quantile %q: %v", f, err)
		}
		quantiles = append(quantiles, pct/100)
	}

	body := lines[1:]
	nItems := 0
	for n, line := range body {
		idx, err := strconv.Atoi(field(line, 14, 20))
		if err != nil {
			return nil, malformed(n+2, "item index: %v", err)
		}
		nItems = max(nItems, idx)
	}
	if nItems == 0 || nItems > len(body) {
		return nil, fmt.Errorf("%w: dtt file lists %d items on %d lines", ports.ErrMalformedInput, nItems, len(body))
	}

	col := scaleColumn(lines)
	if col < 0 {
		return nil, fmt.Errorf("%w: no scale column", ports.ErrMalformedInput)
	}

	m := &saveModel{}
	for _, line := range body[:nItems] {
		m.items = append(m.items, savedItem{
			id:          field(line, 20, col),
			scale:       field(line, col, col+3),
			realization: math.NaN(),
			bounds:      [2]float64{math.NaN(), math.NaN()},
			overshoots:  [2]float64{math.NaN(), math.NaN()},
			quantiles:   quantiles,
		})
	}
	for n := 0; n < len(body); n += nItems {
		id := field(body[n], 5, 14)
		m.experts = append(m.experts, savedExpert{id: id, name: id, userWeight: math.NaN()})
	}

	for n, line := range body {
		e, err := strconv.Atoi(field(line, 0, 5))
		if err != nil || e < 1 || e > len(m.experts) {
			return nil, malformed(n+2, "expert index %q", field(line, 0, 5))
		}
		i, err := strconv.Atoi(field(line, 15, 20))
		if err != nil || i < 1 || i > len(m.items) {
			return nil, malformed(n+2, "item index %q", field(line, 15, 20))
		}
		fields := strings.Fields(field(line, col+3, len(line)))
		if len(fields) < len(quantiles) {
			return nil, malformed(n+2, "%d values for %d quantiles", len(fields), len(quantiles))
		}
		values := make([]float64, len(quantiles))
		for k, f := range fields[:len(quantiles)] {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, malformed(n+2, "value %q: %v", f, err)
			}
			if isMissing(v) {
				v = math.NaN()
			}
			values[k] = v
		}
		m.assessments = append(m.assessments, savedAssessment{
			expert: m.experts[e-1].id,
			item:   m.items[i-1].id,
			values: values,
		})
	}
	return m, nil
}

var leadingToken = regexp.MustCompile(`^\S+(.+)`)

// readRLS sets realizations and questions on the items of m. Items missing
// from the file stay target items.
func readRLS(r io.Reader, m *saveModel) error {
	lines, err := nonBlankLines(r)
	if err != nil {
		return err
	}
	col := scaleColumn(lines)
	if len(lines) > 0 && col < 0 {
		return fmt.Errorf("%w: no scale column in rls file", ports.ErrMalformedInput)
	}

	realizations := map[string]float64{}
	questions := map[string]string{}
	for n, line := range lines {
		head := line[:min(col, len(line))]
		fields := strings.Fields(head)
		if len(fields) < 3 {
			return malformed(n+1, "expected index, id and value")
		}
		value := fields[len(fields)-1]
		prefix := strings.TrimSpace(head[:strings.LastIndex(head, value)])
		match := leadingToken.FindStringSubmatch(prefix)
		if match == nil {
			return malformed(n+1, "no item id")
		}
		id := strings.TrimSpace(match[1])

		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return malformed(n+1, "realization %q: %v", value, err)
		}
		if isMissing(v) {
			v = math.NaN()
		}
		realizations[id] = v
		questions[id] = field(line, col+3, len(line))
	}

	for k := range m.items {
		if v, ok := realizations[m.items[k].id]; ok {
			m.items[k].realization = v
			m.items[k].question = questions[m.items[k].id]
		}
	}
	return nil
}
