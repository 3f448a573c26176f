package columnar

import (
	"fmt"
	"strconv"

	"github.com/INLOpen/nexuslog/core"
	"github.com/tidwall/gjson"
)

// Extractor implements core.DataExtractor over *Batch. Each requested field
// group becomes its own getter group, so callers never index into a flat
// list of accessors.
type Extractor struct{}

var _ core.DataExtractor = (*Extractor)(nil)

func NewExtractor() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extract(data core.EngineData, schema core.Schema, visitor core.DataVisitor) error {
	batch, ok := data.(*Batch)
	if !ok {
		return &core.ExtractionError{Reason: fmt.Sprintf("unsupported engine data type %T", data)}
	}

	groups := make([]core.GetterGroup, 0, len(schema.Groups))
	for _, group := range schema.Groups {
		getters := make([]core.DataGetter, len(group.Fields))
		for i, field := range group.Fields {
			getters[i] = &jsonGetter{
				batch: batch,
				name:  group.Name + "." + field.Name,
				field: field,
			}
		}
		groups = append(groups, core.NewGetterGroup(group, getters))
	}
	return visitor.Visit(batch.Len(), groups)
}

// jsonGetter reads one dotted path out of every row of a batch.
type jsonGetter struct {
	batch *Batch
	name  string
	field core.Field
}

func (g *jsonGetter) Name() string {
	return g.name
}

// lookup returns the value at the getter's path; null counts as absent.
func (g *jsonGetter) lookup(row int) (gjson.Result, bool) {
	res := gjson.Get(g.batch.rows[row], g.name)
	if !res.Exists() || res.Type == gjson.Null {
		return res, false
	}
	return res, true
}

func (g *jsonGetter) typeError(row int, want string, got gjson.Result) error {
	return &core.ExtractionError{
		Field:  g.name,
		Row:    row,
		Reason: fmt.Sprintf("expected %s, found %s value %s", want, got.Type, truncate(got.Raw)),
	}
}

func (g *jsonGetter) GetString(row int) (string, bool, error) {
	res, ok := g.lookup(row)
	if !ok {
		return "", false, nil
	}
	if res.Type != gjson.String {
		return "", false, g.typeError(row, "string", res)
	}
	return res.Str, true, nil
}

func (g *jsonGetter) GetLong(row int) (int64, bool, error) {
	res, ok := g.lookup(row)
	if !ok {
		return 0, false, nil
	}
	if res.Type != gjson.Number {
		return 0, false, g.typeError(row, "long", res)
	}
	v, err := strconv.ParseInt(res.Raw, 10, 64)
	if err != nil {
		return 0, false, &core.ExtractionError{Field: g.name, Row: row, Reason: "not a 64-bit integer", Err: err}
	}
	return v, true, nil
}

func (g *jsonGetter) GetInt(row int) (int32, bool, error) {
	res, ok := g.lookup(row)
	if !ok {
		return 0, false, nil
	}
	if res.Type != gjson.Number {
		return 0, false, g.typeError(row, "integer", res)
	}
	v, err := strconv.ParseInt(res.Raw, 10, 32)
	if err != nil {
		return 0, false, &core.ExtractionError{Field: g.name, Row: row, Reason: "not a 32-bit integer", Err: err}
	}
	return int32(v), true, nil
}

func (g *jsonGetter) GetBool(row int) (bool, bool, error) {
	res, ok := g.lookup(row)
	if !ok {
		return false, false, nil
	}
	switch res.Type {
	case gjson.True:
		return true, true, nil
	case gjson.False:
		return false, true, nil
	default:
		return false, false, g.typeError(row, "boolean", res)
	}
}

// GetStringMap reads a JSON object of string values. Null entries, such as a
// null partition value, are left out of the map.
func (g *jsonGetter) GetStringMap(row int) (map[string]string, bool, error) {
	res, ok := g.lookup(row)
	if !ok {
		return nil, false, nil
	}
	if !res.IsObject() {
		return nil, false, g.typeError(row, "map<string,string>", res)
	}
	out := make(map[string]string)
	var err error
	res.ForEach(func(key, value gjson.Result) bool {
		switch value.Type {
		case gjson.Null:
		case gjson.String:
			out[key.Str] = value.Str
		default:
			err = g.typeError(row, "string map value", value)
			return false
		}
		return true
	})
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func truncate(raw string) string {
	const limit = 64
	if len(raw) <= limit {
		return raw
	}
	return raw[:limit] + "..."
}
