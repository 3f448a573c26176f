package filter

import (
	"errors"
	"math"
	"testing"

	"github.com/INLOpen/nexuslog/columnar"
	"github.com/INLOpen/nexuslog/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

var testSchema = core.NewTableSchema(
	core.Field{Name: "id", Type: core.TypeLong},
	core.Field{Name: "price", Type: core.TypeDouble, Nullable: true},
	core.Field{Name: "city", Type: core.TypeString, Nullable: true},
	core.Field{Name: "active", Type: core.TypeBoolean, Nullable: true},
)

const statsA = `{"numRecords":10,"minValues":{"id":1,"price":1.5,"city":"Austin"},"maxValues":{"id":10,"price":9.5,"city":"Denver"},"nullCount":{"id":0,"price":0,"city":2}}`
const statsB = `{"numRecords":5,"minValues":{"id":20,"city":"Miami"},"maxValues":{"id":30,"city":"Seattle"},"nullCount":{"id":0,"price":5,"city":0}}`

func addRow(path, stats string) core.Action {
	return core.Action{Add: &core.Add{Path: path, Size: 100, DataChange: true, Stats: stats}}
}

func keptPaths(t *testing.T, data core.EngineData) []string {
	t.Helper()
	batch := data.(*columnar.Batch)
	var paths []string
	for i := 0; i < batch.Len(); i++ {
		if path := gjson.Get(batch.Row(i), "add.path"); path.Exists() {
			paths = append(paths, "add:"+path.Str)
		} else {
			paths = append(paths, "other")
		}
	}
	return paths
}

func newTestBatch(t *testing.T) *columnar.Batch {
	t.Helper()
	batch, err := columnar.FromActions(
		addRow("a", statsA),
		addRow("b", statsB),
		addRow("nostats", ""),
		core.Action{Remove: &core.Remove{Path: "gone"}},
	)
	require.NoError(t, err)
	return batch
}

func TestNew_NilPredicate(t *testing.T) {
	assert.Nil(t, New(testSchema, nil, columnar.NewExtractor(), nil))
}

func TestDataSkippingFilter_Apply(t *testing.T) {
	testCases := []struct {
		name      string
		predicate core.Expression
		want      []string
	}{
		{"id < 5 skips b", core.Lt(core.Column("id"), core.Literal(5)), []string{"add:a", "add:nostats", "other"}},
		{"id < 1 skips both", core.Lt(core.Column("id"), core.Literal(1)), []string{"add:nostats", "other"}},
		{"id <= 1 keeps a", core.Le(core.Column("id"), core.Literal(1)), []string{"add:a", "add:nostats", "other"}},
		{"id > 10 skips a", core.Gt(core.Column("id"), core.Literal(10)), []string{"add:b", "add:nostats", "other"}},
		{"id >= 10 keeps a", core.Ge(core.Column("id"), core.Literal(10)), []string{"add:a", "add:b", "add:nostats", "other"}},
		{"id = 15 skips both", core.Eq(core.Column("id"), core.Literal(15)), []string{"add:nostats", "other"}},
		{"literal on the left", core.Gt(core.Literal(5), core.Column("id")), []string{"add:a", "add:nostats", "other"}},
		{"string bounds", core.Eq(core.Column("city"), core.Literal("Boston")), []string{"add:a", "add:nostats", "other"}},
		{"double bounds with int literal", core.Gt(core.Column("price"), core.Literal(10)), []string{"add:b", "add:nostats", "other"}},
		{"is null uses null count", core.IsNull(core.Column("city")), []string{"add:a", "add:nostats", "other"}},
		{"is not null all null", core.IsNotNull(core.Column("price")), []string{"add:a", "add:nostats", "other"}},
		{"and skips if any child skips", core.And(core.Gt(core.Column("id"), core.Literal(0)), core.Lt(core.Column("id"), core.Literal(15))), []string{"add:a", "add:nostats", "other"}},
		{"or skips only if all skip", core.Or(core.Lt(core.Column("id"), core.Literal(5)), core.Gt(core.Column("id"), core.Literal(25))), []string{"add:a", "add:b", "add:nostats", "other"}},
		{"not is pushed down", core.Not(core.Ge(core.Column("id"), core.Literal(5))), []string{"add:a", "add:nostats", "other"}},
		{"unknown column keeps everything", core.Eq(core.Column("missing"), core.Literal(1)), []string{"add:a", "add:b", "add:nostats", "other"}},
		{"type mismatch keeps everything", core.Eq(core.Column("id"), core.Literal("x")), []string{"add:a", "add:b", "add:nostats", "other"}},
		{"boolean columns are never pruned", core.Eq(core.Column("active"), core.Literal(true)), []string{"add:a", "add:b", "add:nostats", "other"}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := New(testSchema, tc.predicate, columnar.NewExtractor(), nil)
			require.NotNil(t, f)
			out, err := f.Apply(newTestBatch(t))
			require.NoError(t, err)
			assert.Equal(t, tc.want, keptPaths(t, out))
		})
	}
}

func TestDataSkippingFilter_TimeBounds(t *testing.T) {
	schema := core.NewTableSchema(
		core.Field{Name: "ts", Type: core.TypeTimestamp, Nullable: true},
		core.Field{Name: "day", Type: core.TypeDate, Nullable: true},
	)
	const stats = `{"numRecords":3,"minValues":{"ts":"2024-01-01T10:00:00.000Z","day":"2024-01-05"},"maxValues":{"ts":"2024-01-01T11:00:00.000Z","day":"2024-01-09"},"nullCount":{"ts":0,"day":0}}`
	batch := func(t *testing.T) *columnar.Batch {
		b, err := columnar.FromActions(addRow("f", stats))
		require.NoError(t, err)
		return b
	}

	testCases := []struct {
		name      string
		predicate string
		kept      bool
	}{
		{"space separated literal", "ts < '2024-01-01 12:00:00'", true},
		{"literal with offset before range", "ts >= '2024-01-01T11:30:00+02:00'", true},
		{"literal with offset after range", "ts > '2024-01-01T13:30:00+02:00'", false},
		{"before the minimum", "ts < '2024-01-01 09:59:59'", false},
		{"inside the truncated millisecond of the maximum", "ts > '2024-01-01T11:00:00.0005Z'", true},
		{"after the truncated millisecond", "ts > '2024-01-01T11:00:00.001Z'", false},
		{"unparseable literal keeps the file", "ts > 'yesterday'", true},
		{"date inside range", "day = '2024-01-07'", true},
		{"date after range", "day > '2024-01-09'", false},
		{"date with a timestamp literal keeps the file", "day > '2024-01-10T00:00:00Z'", true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			predicate, err := core.ParsePredicate(tc.predicate)
			require.NoError(t, err)
			f := New(schema, predicate, columnar.NewExtractor(), nil)
			out, err := f.Apply(batch(t))
			require.NoError(t, err)
			if tc.kept {
				assert.Equal(t, []string{"add:f"}, keptPaths(t, out))
			} else {
				assert.Empty(t, keptPaths(t, out))
			}
		})
	}
}

func TestDataSkippingFilter_NaNLiteralKeepsFiles(t *testing.T) {
	f := New(testSchema, core.Lt(core.Column("price"), core.Literal(math.NaN())), columnar.NewExtractor(), nil)
	out, err := f.Apply(newTestBatch(t))
	require.NoError(t, err)
	assert.Equal(t, []string{"add:a", "add:b", "add:nostats", "other"}, keptPaths(t, out))
}

func TestDataSkippingFilter_MalformedStats(t *testing.T) {
	batch, err := columnar.FromActions(addRow("a", "{not json"))
	require.NoError(t, err)

	f := New(testSchema, core.Lt(core.Column("id"), core.Literal(5)), columnar.NewExtractor(), nil)
	_, err = f.Apply(batch)
	require.Error(t, err)
	assert.True(t, core.IsFilterError(err))
}

func TestDataSkippingFilter_ExtractionFailureIsFilterError(t *testing.T) {
	batch := columnar.NewBatch([]string{`{"add":{"path":7}}`})

	f := New(testSchema, core.Lt(core.Column("id"), core.Literal(5)), columnar.NewExtractor(), nil)
	_, err := f.Apply(batch)
	require.Error(t, err)
	assert.True(t, core.IsFilterError(err))
	assert.True(t, core.IsExtractionError(err), "the underlying extraction error stays reachable")
}

type opaqueData struct{}

func (opaqueData) Len() int { return 1 }

type failingExtractor struct{}

func (failingExtractor) Extract(core.EngineData, core.Schema, core.DataVisitor) error {
	return errors.New("should not be called")
}

func TestDataSkippingFilter_NonSelectableDataPassesThrough(t *testing.T) {
	f := New(testSchema, core.Lt(core.Column("id"), core.Literal(5)), failingExtractor{}, nil)
	data := opaqueData{}
	out, err := f.Apply(data)
	require.NoError(t, err)
	assert.Equal(t, data, out)
}

func TestNormalize(t *testing.T) {
	expr := normalize(core.Not(core.And(core.Lt(core.Column("id"), core.Literal(5)), core.IsNull(core.Column("city")))), false)
	want := core.Or(core.Ge(core.Column("id"), core.Literal(5)), core.IsNotNull(core.Column("city")))
	assert.Equal(t, want, expr)
}
