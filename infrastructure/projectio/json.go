// Package projectio reads and writes projects in the file formats of the
// expert judgment tools: the JSON save model (versions 1.2.0 and 1.2.1),
// Excalibur .dtt/.rls pairs and CSV imports.
package projectio

import (
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"github.com/tidwall/sjson"

	"github.com/ahrav/go-cooke/internal/domain"
	"github.com/ahrav/go-cooke/internal/ports"
)

const (
	// FormatJSON names the JSON save model.
	FormatJSON = "json"

	// CurrentVersion is the save model version written by JSONCodec.
	CurrentVersion = "1.2.1"

	// legacyVersion is assumed for files without a version field.
	legacyVersion = "1.2.0"
)

var (
	_ ports.ProjectReader = JSONCodec{}
	_ ports.ProjectWriter = JSONCodec{}
)

// JSONCodec reads and writes the JSON save model:
//
//	{"version": "1.2.1",
//	 "experts": {id: {"name", "user weight"}},
//	 "items": {id: {"realization", "scale", "question", "quantiles",
//	                "unit", "bounds", "overshoots"}},
//	 "assessments": {expert: {item: [values per item quantile]}}}
//
// null stands for NaN. Experts and items keep file order. Only actual
// experts are written; decision makers and results are not saved.
type JSONCodec struct{}

// Format returns "json".
func (JSONCodec) Format() string { return FormatJSON }

// Read decodes a project. Files without a version are read as 1.2.0, where
// assessments map quantile levels to values.
func (c JSONCodec) Read(r io.Reader) (*domain.Project, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, ports.NewIOError(FormatJSON, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, ports.NewIOError(FormatJSON, fmt.Errorf("%w: invalid JSON", ports.ErrMalformedInput))
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return nil, ports.NewIOError(FormatJSON, fmt.Errorf("%w: top level is not an object", ports.ErrMalformedInput))
	}

	var m *saveModel
	switch version := root.Get("version"); {
	case !version.Exists():
		m, err = decodeLegacy(root)
	case version.String() == CurrentVersion:
		m, err = decodeCurrent(root)
	default:
		err = fmt.Errorf("%w: %q, expected %s or %s", domain.ErrUnsupportedVersion, version.String(), legacyVersion, CurrentVersion)
	}
	if err != nil {
		return nil, ports.NewIOError(FormatJSON, err)
	}
	p, err := m.project()
	if err != nil {
		return nil, ports.NewIOError(FormatJSON, err)
	}
	return p, nil
}

// Write encodes the actual experts, the items and their assessments of p.
func (c JSONCodec) Write(w io.Writer, p *domain.Project) error {
	raw, err := encodeProject(p)
	if err != nil {
		return ports.NewIOError(FormatJSON, err)
	}
	out := pretty.PrettyOptions(raw, &pretty.Options{Width: 120, Prefix: "", Indent: "    "})
	if _, err := w.Write(out); err != nil {
		return ports.NewIOError(FormatJSON, err)
	}
	return nil
}

func decodeCurrent(root gjson.Result) (*saveModel, error) {
	m := &saveModel{}
	if err := decodeExperts(root.Get("experts"), m); err != nil {
		return nil, err
	}

	var err error
	root.Get("items").ForEach(func(key, value gjson.Result) bool {
		var it savedItem
		if it, err = decodeItem(key.String(), value); err != nil {
			return false
		}
		if !value.Get("quantiles").Exists() {
			err = fmt.Errorf("%w: item %q has no quantiles", ports.ErrMalformedInput, key.String())
			return false
		}
		m.items = append(m.items, it)
		return true
	})
	if err != nil {
		return nil, err
	}

	root.Get("assessments").ForEach(func(expert, items gjson.Result) bool {
		items.ForEach(func(item, values gjson.Result) bool {
			if !values.IsArray() {
				err = fmt.Errorf("%w: assessment %s/%s is not a list", ports.ErrMalformedInput, expert.String(), item.String())
				return false
			}
			m.assessments = append(m.assessments, savedAssessment{
				expert: expert.String(),
				item:   item.String(),
				values: floats(values.Array()),
			})
			return true
		})
		return err == nil
	})
	return m, err
}

// decodeLegacy reads a 1.2.0 file. Its items carry no quantile lists; an
// item's quantiles are the levels with a value in any assessment.
func decodeLegacy(root gjson.Result) (*saveModel, error) {
	m := &saveModel{}
	if err := decodeExperts(root.Get("experts"), m); err != nil {
		return nil, err
	}

	var err error
	root.Get("items").ForEach(func(key, value gjson.Result) bool {
		var it savedItem
		if it, err = decodeItem(key.String(), value); err != nil {
			return false
		}
		m.items = append(m.items, it)
		return true
	})
	if err != nil {
		return nil, err
	}

	type levelValues map[float64]float64
	byPair := map[[2]string]levelValues{}
	used := map[string]map[float64]struct{}{}
	var order [][2]string

	root.Get("assessments").ForEach(func(expert, items gjson.Result) bool {
		items.ForEach(func(item, levels gjson.Result) bool {
			pair := [2]string{expert.String(), item.String()}
			values := levelValues{}
			levels.ForEach(func(level, v gjson.Result) bool {
				q, perr := strconv.ParseFloat(level.String(), 64)
				if perr != nil {
					err = fmt.Errorf("%w: quantile key %q: %v", ports.ErrMalformedInput, level.String(), perr)
					return false
				}
				x := jsonNumber(v)
				values[q] = x
				if !math.IsNaN(x) {
					if used[pair[1]] == nil {
						used[pair[1]] = map[float64]struct{}{}
					}
					used[pair[1]][q] = struct{}{}
				}
				return true
			})
			byPair[pair] = values
			order = append(order, pair)
			return err == nil
		})
		return err == nil
	})
	if err != nil {
		return nil, err
	}

	for i := range m.items {
		levels := make([]float64, 0, len(used[m.items[i].id]))
		for q := range used[m.items[i].id] {
			levels = append(levels, q)
		}
		slices.Sort(levels)
		m.items[i].quantiles = levels
	}
	quantilesOf := map[string][]float64{}
	for _, it := range m.items {
		quantilesOf[it.id] = it.quantiles
	}
	for _, pair := range order {
		levels := quantilesOf[pair[1]]
		if len(levels) == 0 {
			continue
		}
		values := make([]float64, len(levels))
		for k, q := range levels {
			values[k] = byPair[pair][q]
		}
		m.assessments = append(m.assessments, savedAssessment{expert: pair[0], item: pair[1], values: values})
	}
	return m, nil
}

func decodeExperts(experts gjson.Result, m *saveModel) error {
	var err error
	experts.ForEach(func(key, value gjson.Result) bool {
		e := savedExpert{id: key.String(), userWeight: math.NaN()}
		value.ForEach(func(field, v gjson.Result) bool {
			switch normaliseKey(field.String()) {
			case "name":
				e.name = v.String()
			case "user weight":
				e.userWeight = jsonNumber(v)
			default:
				err = fmt.Errorf("%w: unknown field %q in expert %q", ports.ErrMalformedInput, field.String(), e.id)
				return false
			}
			return true
		})
		m.experts = append(m.experts, e)
		return err == nil
	})
	return err
}

func decodeItem(id string, value gjson.Result) (savedItem, error) {
	it := savedItem{
		id:          id,
		scale:       string(domain.ScaleUniform),
		realization: math.NaN(),
		bounds:      [2]float64{math.NaN(), math.NaN()},
		overshoots:  [2]float64{math.NaN(), math.NaN()},
	}
	var err error
	value.ForEach(func(field, v gjson.Result) bool {
		switch normaliseKey(field.String()) {
		case "realization":
			it.realization = jsonNumber(v)
		case "scale":
			it.scale = v.String()
		case "question":
			it.question = v.String()
		case "unit":
			it.unit = v.String()
		case "quantiles":
			it.quantiles = floats(v.Array())
		case "bounds":
			it.bounds, err = pair(v, "bounds", id)
		case "overshoots":
			it.overshoots, err = pair(v, "overshoots", id)
		default:
			err = fmt.Errorf("%w: unknown field %q in item %q", ports.ErrMalformedInput, field.String(), id)
		}
		return err == nil
	})
	return it, err
}

func pair(v gjson.Result, field, id string) ([2]float64, error) {
	values := floats(v.Array())
	if len(values) != 2 {
		return [2]float64{}, fmt.Errorf("%w: %s of item %q must have 2 values", ports.ErrMalformedInput, field, id)
	}
	return [2]float64{values[0], values[1]}, nil
}

// jsonNumber converts a JSON value to float64. null and non-numbers are NaN.
func jsonNumber(v gjson.Result) float64 {
	switch v.Type {
	case gjson.Number:
		return v.Num
	case gjson.String:
		if f, err := strconv.ParseFloat(v.Str, 64); err == nil {
			return f
		}
	}
	return math.NaN()
}

func floats(values []gjson.Result) []float64 {
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = jsonNumber(v)
	}
	return out
}

// pathKey escapes an id for use as one sjson path component.
var pathKey = strings.NewReplacer(`\`, `\\`, ".", `\.`, "*", `\*`, "?", `\?`, "|", `\|`, "#", `\#`, "@", `\@`).Replace

// saveDoc builds the JSON save model with sjson. Members are written in the
// order they are set. NaN is written as null.
type saveDoc struct {
	raw []byte
	err error
}

func (d *saveDoc) set(path string, v any) {
	if d.err != nil {
		return
	}
	switch x := v.(type) {
	case float64:
		v = number(x)
	case []float64:
		v = numbers(x)
	}
	d.raw, d.err = sjson.SetBytes(d.raw, path, v)
}

func (d *saveDoc) setRaw(path, raw string) {
	if d.err != nil {
		return
	}
	d.raw, d.err = sjson.SetRawBytes(d.raw, path, []byte(raw))
}

// number maps NaN to null.
func number(v float64) any {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return v
}

func numbers(values []float64) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = number(v)
	}
	return out
}

func encodeProject(p *domain.Project) ([]byte, error) {
	m, err := modelFromProject(p)
	if err != nil {
		return nil, err
	}

	d := &saveDoc{raw: []byte("{}")}
	d.set("version", CurrentVersion)

	d.setRaw("experts", "{}")
	for _, e := range m.experts {
		prefix := "experts." + pathKey(e.id) + "."
		d.set(prefix+"name", e.name)
		d.set(prefix+"user weight", e.userWeight)
	}

	d.setRaw("items", "{}")
	for _, it := range m.items {
		prefix := "items." + pathKey(it.id) + "."
		d.set(prefix+"realization", it.realization)
		d.set(prefix+"scale", it.scale)
		d.set(prefix+"question", it.question)
		d.set(prefix+"quantiles", it.quantiles)
		d.set(prefix+"unit", it.unit)
		d.set(prefix+"bounds", it.bounds[:])
		d.set(prefix+"overshoots", it.overshoots[:])
	}

	d.setRaw("assessments", "{}")
	for _, a := range m.assessments {
		d.set("assessments."+pathKey(a.expert)+"."+pathKey(a.item), a.values)
	}
	if d.err != nil {
		return nil, d.err
	}
	return d.raw, nil
}
