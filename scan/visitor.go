package scan

import (
	"github.com/INLOpen/nexuslog/core"
)

// addRemoveVisitor collects add and remove actions from a batch, each list in
// row-scan order. Rows that are neither (metadata, protocol, commitInfo) are
// ignored.
type addRemoveVisitor struct {
	adds    []*core.Add
	removes []*core.Remove
}

var _ core.DataVisitor = (*addRemoveVisitor)(nil)

func (v *addRemoveVisitor) Visit(rowCount int, groups []core.GetterGroup) error {
	addGroup, hasAdds := core.LookupGroup(groups, core.AddGroupName)
	removeGroup, hasRemoves := core.LookupGroup(groups, core.RemoveGroupName)

	for i := 0; i < rowCount; i++ {
		if hasAdds {
			path, ok, err := addGroup.Field("path").GetString(i)
			if err != nil {
				return err
			}
			if ok {
				add, err := visitAdd(i, path, addGroup)
				if err != nil {
					return err
				}
				v.adds = append(v.adds, add)
			}
		}
		if hasRemoves {
			path, ok, err := removeGroup.Field("path").GetString(i)
			if err != nil {
				return err
			}
			if ok {
				remove, err := visitRemove(i, path, removeGroup)
				if err != nil {
					return err
				}
				v.removes = append(v.removes, remove)
			}
		}
	}
	return nil
}

func visitAdd(row int, path string, group core.GetterGroup) (*core.Add, error) {
	r := rowReader{group: group, row: row}
	add := &core.Add{
		Path:                    path,
		PartitionValues:         r.stringMap("partitionValues"),
		Size:                    r.requiredLong("size"),
		ModificationTime:        r.requiredLong("modificationTime"),
		DataChange:              r.requiredBool("dataChange"),
		Stats:                   r.optionalString("stats"),
		Tags:                    r.stringMap("tags"),
		DeletionVector:          r.deletionVector(),
		BaseRowID:               r.optionalLong("baseRowId"),
		DefaultRowCommitVersion: r.optionalLong("defaultRowCommitVersion"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return add, nil
}

func visitRemove(row int, path string, group core.GetterGroup) (*core.Remove, error) {
	r := rowReader{group: group, row: row}
	remove := &core.Remove{
		Path:                    path,
		DeletionTimestamp:       r.optionalLong("deletionTimestamp"),
		DataChange:              r.requiredBool("dataChange"),
		ExtendedFileMetadata:    r.optionalBool("extendedFileMetadata"),
		PartitionValues:         r.stringMap("partitionValues"),
		Size:                    r.optionalLong("size"),
		Tags:                    r.stringMap("tags"),
		DeletionVector:          r.deletionVector(),
		BaseRowID:               r.optionalLong("baseRowId"),
		DefaultRowCommitVersion: r.optionalLong("defaultRowCommitVersion"),
	}
	if r.err != nil {
		return nil, r.err
	}
	return remove, nil
}

// rowReader reads the fields of one row of a getter group and keeps the first
// error, so a record can be assembled in a single expression.
type rowReader struct {
	group core.GetterGroup
	row   int
	err   error
}

func (r *rowReader) missing(name string) {
	if r.err == nil {
		r.err = &core.ExtractionError{
			Field:  r.group.Group.Name + "." + name,
			Row:    r.row,
			Reason: "required field is missing",
		}
	}
}

func (r *rowReader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *rowReader) optionalString(name string) string {
	if r.err != nil {
		return ""
	}
	v, _, err := r.group.Field(name).GetString(r.row)
	r.fail(err)
	return v
}

func (r *rowReader) stringMap(name string) map[string]string {
	if r.err != nil {
		return nil
	}
	v, _, err := r.group.Field(name).GetStringMap(r.row)
	r.fail(err)
	return v
}

func (r *rowReader) requiredLong(name string) int64 {
	if r.err != nil {
		return 0
	}
	v, ok, err := r.group.Field(name).GetLong(r.row)
	if err != nil {
		r.fail(err)
	} else if !ok {
		r.missing(name)
	}
	return v
}

func (r *rowReader) optionalLong(name string) *int64 {
	if r.err != nil {
		return nil
	}
	v, ok, err := r.group.Field(name).GetLong(r.row)
	if err != nil || !ok {
		r.fail(err)
		return nil
	}
	return &v
}

func (r *rowReader) requiredBool(name string) bool {
	if r.err != nil {
		return false
	}
	v, ok, err := r.group.Field(name).GetBool(r.row)
	if err != nil {
		r.fail(err)
	} else if !ok {
		r.missing(name)
	}
	return v
}

func (r *rowReader) optionalBool(name string) *bool {
	if r.err != nil {
		return nil
	}
	v, ok, err := r.group.Field(name).GetBool(r.row)
	if err != nil || !ok {
		r.fail(err)
		return nil
	}
	return &v
}

// deletionVector returns nil when the row carries no deletion vector. Once a
// storage type is present the descriptor's other fields are required.
func (r *rowReader) deletionVector() *core.DeletionVectorDescriptor {
	if r.err != nil {
		return nil
	}
	storageType, ok, err := r.group.Field("deletionVector.storageType").GetString(r.row)
	if err != nil || !ok {
		r.fail(err)
		return nil
	}

	dv := &core.DeletionVectorDescriptor{StorageType: storageType}
	pathOrInline, ok, err := r.group.Field("deletionVector.pathOrInlineDv").GetString(r.row)
	switch {
	case err != nil:
		r.fail(err)
	case !ok:
		r.missing("deletionVector.pathOrInlineDv")
	}
	dv.PathOrInlineDv = pathOrInline

	if offset, ok, err := r.group.Field("deletionVector.offset").GetInt(r.row); err != nil {
		r.fail(err)
	} else if ok {
		dv.Offset = &offset
	}

	size, ok, err := r.group.Field("deletionVector.sizeInBytes").GetInt(r.row)
	switch {
	case err != nil:
		r.fail(err)
	case !ok:
		r.missing("deletionVector.sizeInBytes")
	}
	dv.SizeInBytes = size

	cardinality, ok, err := r.group.Field("deletionVector.cardinality").GetLong(r.row)
	switch {
	case err != nil:
		r.fail(err)
	case !ok:
		r.missing("deletionVector.cardinality")
	}
	dv.Cardinality = cardinality

	if r.err != nil {
		return nil
	}
	return dv
}
