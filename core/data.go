package core

import (
	"fmt"

	"github.com/RoaringBitmap/roaring"
)

// EngineData is an opaque chunk of action rows produced by a batch source.
type EngineData interface {
	Len() int
}

// SelectableData is EngineData that can be narrowed to a subset of its rows.
// Row order is preserved by Select.
type SelectableData interface {
	EngineData
	Select(rows *roaring.Bitmap) EngineData
}

// DataGetter reads one column of a batch. Every accessor reports whether the
// value is present; an absent value is never an error. A present value of the
// wrong type is an *ExtractionError.
type DataGetter interface {
	// Name returns the qualified column name, e.g. "add.path".
	Name() string
	GetString(row int) (string, bool, error)
	GetLong(row int) (int64, bool, error)
	GetInt(row int) (int32, bool, error)
	GetBool(row int) (bool, bool, error)
	GetStringMap(row int) (map[string]string, bool, error)
}

// GetterGroup holds the getters for one requested FieldGroup, aligned with the
// group's declared field order.
type GetterGroup struct {
	Group   FieldGroup
	Getters []DataGetter
}

// NewGetterGroup pairs a field group with its getters. It panics if the
// getter count does not match the declared fields, which is an extractor bug.
func NewGetterGroup(group FieldGroup, getters []DataGetter) GetterGroup {
	if len(getters) != len(group.Fields) {
		panic(fmt.Sprintf("getter group %q: %d getters for %d fields", group.Name, len(getters), len(group.Fields)))
	}
	return GetterGroup{Group: group, Getters: getters}
}

// Field returns the getter of a field by its name within the group. Unknown
// names yield a getter whose every read fails with an *ExtractionError.
func (g GetterGroup) Field(name string) DataGetter {
	if i := g.Group.IndexOf(name); i >= 0 {
		return g.Getters[i]
	}
	return unknownFieldGetter{name: g.Group.Name + "." + name}
}

// LookupGroup finds the getter group with the given name.
func LookupGroup(groups []GetterGroup, name string) (GetterGroup, bool) {
	for _, g := range groups {
		if g.Group.Name == name {
			return g, true
		}
	}
	return GetterGroup{}, false
}

// DataVisitor receives the getter groups of a batch, one per requested field
// group and in request order.
type DataVisitor interface {
	Visit(rowCount int, groups []GetterGroup) error
}

// DataExtractor projects a batch onto a schema and hands the resulting
// accessors to a visitor.
type DataExtractor interface {
	Extract(data EngineData, schema Schema, visitor DataVisitor) error
}

type unknownFieldGetter struct {
	name string
}

func (u unknownFieldGetter) Name() string { return u.name }

func (u unknownFieldGetter) err(row int) error {
	return &ExtractionError{Field: u.name, Row: row, Reason: "field is not part of the requested schema"}
}

func (u unknownFieldGetter) GetString(row int) (string, bool, error) { return "", false, u.err(row) }
func (u unknownFieldGetter) GetLong(row int) (int64, bool, error)    { return 0, false, u.err(row) }
func (u unknownFieldGetter) GetInt(row int) (int32, bool, error)     { return 0, false, u.err(row) }
func (u unknownFieldGetter) GetBool(row int) (bool, bool, error)     { return false, false, u.err(row) }
func (u unknownFieldGetter) GetStringMap(row int) (map[string]string, bool, error) {
	return nil, false, u.err(row)
}

// ActionBatch is one element produced by a batch source: a chunk of actions,
// whether it came from a commit file (IsLogBatch) or a checkpoint, and the
// table version it belongs to.
type ActionBatch struct {
	Data       EngineData
	IsLogBatch bool
	Version    int64
}

func (b *ActionBatch) TypeNode() string {
	return "ACTIONBATCH"
}
