package filter

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/INLOpen/nexuslog/core"
	"github.com/RoaringBitmap/roaring"
	"github.com/tidwall/gjson"
)

// statsSchema is the projection the filter needs from every row.
var statsSchema = core.NewSchema(core.FieldGroup{
	Name: core.AddGroupName,
	Fields: []core.Field{
		{Name: "path", Type: core.TypeString},
		{Name: "stats", Type: core.TypeString, Nullable: true},
	},
})

// DataSkippingFilter drops add rows whose file statistics prove that no row
// of the file can satisfy the predicate. It only ever removes whole rows and
// keeps every row it cannot rule out: rows without statistics, rows that are
// not adds, and predicates it does not understand.
type DataSkippingFilter struct {
	schema    core.TableSchema
	predicate core.Expression
	extractor core.DataExtractor
	logger    *slog.Logger
}

// New returns a filter for the predicate, or nil if predicate is nil.
func New(schema core.TableSchema, predicate core.Expression, extractor core.DataExtractor, logger *slog.Logger) *DataSkippingFilter {
	if predicate == nil {
		return nil
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &DataSkippingFilter{
		schema:    schema,
		predicate: normalize(predicate, false),
		extractor: extractor,
		logger:    logger.With("component", "DataSkippingFilter"),
	}
}

// Predicate returns the normalized predicate the filter evaluates.
func (f *DataSkippingFilter) Predicate() core.Expression {
	return f.predicate
}

// Apply returns data narrowed to the rows that might match. Data that cannot
// be narrowed is returned unchanged. Any failure is a *core.FilterError.
func (f *DataSkippingFilter) Apply(data core.EngineData) (core.EngineData, error) {
	selectable, ok := data.(core.SelectableData)
	if !ok {
		f.logger.Debug("Engine data does not support row selection, skipping filter", "type", fmt.Sprintf("%T", data))
		return data, nil
	}

	visitor := &skippingVisitor{filter: f, keep: roaring.New()}
	if err := f.extractor.Extract(data, statsSchema, visitor); err != nil {
		return nil, &core.FilterError{Err: err}
	}
	f.logger.Debug("Applied data skipping", "rows", data.Len(), "kept", visitor.keep.GetCardinality())
	return selectable.Select(visitor.keep), nil
}

type skippingVisitor struct {
	filter *DataSkippingFilter
	keep   *roaring.Bitmap
}

func (v *skippingVisitor) Visit(rowCount int, groups []core.GetterGroup) error {
	add, ok := core.LookupGroup(groups, core.AddGroupName)
	if !ok {
		return fmt.Errorf("extractor did not return the %q group", core.AddGroupName)
	}
	pathGetter := add.Field("path")
	statsGetter := add.Field("stats")

	for row := 0; row < rowCount; row++ {
		_, isAdd, err := pathGetter.GetString(row)
		if err != nil {
			return err
		}
		if !isAdd {
			v.keep.Add(uint32(row))
			continue
		}
		raw, hasStats, err := statsGetter.GetString(row)
		if err != nil {
			return err
		}
		if !hasStats || raw == "" {
			v.keep.Add(uint32(row))
			continue
		}
		if !gjson.Valid(raw) {
			return fmt.Errorf("row %d: stats are not valid JSON", row)
		}
		if !v.filter.canSkip(v.filter.predicate, gjson.Parse(raw)) {
			v.keep.Add(uint32(row))
		}
	}
	return nil
}
