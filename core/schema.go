package core

// DataType is the primitive type of a schema field.
type DataType string

const (
	TypeString    DataType = "string"
	TypeLong      DataType = "long"
	TypeInteger   DataType = "integer"
	TypeShort     DataType = "short"
	TypeByte      DataType = "byte"
	TypeDouble    DataType = "double"
	TypeFloat     DataType = "float"
	TypeBoolean   DataType = "boolean"
	TypeDate      DataType = "date"
	TypeTimestamp DataType = "timestamp"
	TypeStringMap DataType = "map<string,string>"
)

// IsPrimitive reports whether t is a scalar type a table column can have.
func (t DataType) IsPrimitive() bool {
	switch t {
	case TypeString, TypeLong, TypeInteger, TypeShort, TypeByte, TypeDouble,
		TypeFloat, TypeBoolean, TypeDate, TypeTimestamp:
		return true
	}
	return false
}

// Field is a named, typed column. Nested fields inside a group use dotted
// names such as "deletionVector.storageType".
type Field struct {
	Name     string
	Type     DataType
	Nullable bool
}

// FieldGroup is a named set of fields that an extractor exposes as one
// accessor group, e.g. all columns of the "add" action.
type FieldGroup struct {
	Name   string
	Fields []Field
}

// IndexOf returns the declared position of a field in the group, or -1.
func (g FieldGroup) IndexOf(name string) int {
	for i, f := range g.Fields {
		if f.Name == name {
			return i
		}
	}
	return -1
}

// Schema is the ordered list of field groups requested from an extractor.
type Schema struct {
	Groups []FieldGroup
}

func NewSchema(groups ...FieldGroup) Schema {
	return Schema{Groups: groups}
}

const (
	AddGroupName    = "add"
	RemoveGroupName = "remove"
)

var deletionVectorFields = []Field{
	{Name: "deletionVector.storageType", Type: TypeString, Nullable: true},
	{Name: "deletionVector.pathOrInlineDv", Type: TypeString, Nullable: true},
	{Name: "deletionVector.offset", Type: TypeInteger, Nullable: true},
	{Name: "deletionVector.sizeInBytes", Type: TypeInteger, Nullable: true},
	{Name: "deletionVector.cardinality", Type: TypeLong, Nullable: true},
}

// AddGroup describes the columns of an add action.
var AddGroup = FieldGroup{
	Name: AddGroupName,
	Fields: concatFields(
		[]Field{
			{Name: "path", Type: TypeString},
			{Name: "partitionValues", Type: TypeStringMap, Nullable: true},
			{Name: "size", Type: TypeLong},
			{Name: "modificationTime", Type: TypeLong},
			{Name: "dataChange", Type: TypeBoolean},
			{Name: "stats", Type: TypeString, Nullable: true},
			{Name: "tags", Type: TypeStringMap, Nullable: true},
		},
		deletionVectorFields,
		[]Field{
			{Name: "baseRowId", Type: TypeLong, Nullable: true},
			{Name: "defaultRowCommitVersion", Type: TypeLong, Nullable: true},
		},
	),
}

// RemoveGroup describes the columns of a remove action.
var RemoveGroup = FieldGroup{
	Name: RemoveGroupName,
	Fields: concatFields(
		[]Field{
			{Name: "path", Type: TypeString},
			{Name: "deletionTimestamp", Type: TypeLong, Nullable: true},
			{Name: "dataChange", Type: TypeBoolean},
			{Name: "extendedFileMetadata", Type: TypeBoolean, Nullable: true},
			{Name: "partitionValues", Type: TypeStringMap, Nullable: true},
			{Name: "size", Type: TypeLong, Nullable: true},
			{Name: "tags", Type: TypeStringMap, Nullable: true},
		},
		deletionVectorFields,
		[]Field{
			{Name: "baseRowId", Type: TypeLong, Nullable: true},
			{Name: "defaultRowCommitVersion", Type: TypeLong, Nullable: true},
		},
	),
}

var (
	// LogBatchSchema is requested for batches read from commit files.
	LogBatchSchema = NewSchema(AddGroup, RemoveGroup)
	// CheckpointBatchSchema is requested for checkpoint batches. Removes in a
	// checkpoint only serve vacuum and are never loaded for replay.
	CheckpointBatchSchema = NewSchema(AddGroup)
)

func concatFields(parts ...[]Field) []Field {
	var out []Field
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// TableSchema describes the data columns of a table. It is used to interpret
// file statistics during data skipping.
type TableSchema struct {
	Columns []Field
}

func NewTableSchema(columns ...Field) TableSchema {
	return TableSchema{Columns: columns}
}

// Column looks up a column by name.
func (s TableSchema) Column(name string) (Field, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Field{}, false
}
