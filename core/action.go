package core

import "strconv"

// DeletionVectorDescriptor locates the mask of soft-deleted rows attached to a data file.
type DeletionVectorDescriptor struct {
	// StorageType is 'u' (relative path derived from a UUID), 'i' (inline) or 'p' (absolute path).
	StorageType    string `json:"storageType"`
	PathOrInlineDv string `json:"pathOrInlineDv"`
	Offset         *int32 `json:"offset,omitempty"`
	SizeInBytes    int32  `json:"sizeInBytes"`
	Cardinality    int64  `json:"cardinality"`
}

// UniqueID returns the identifier that distinguishes two references to the same
// data file carrying different deletion masks.
func (dv *DeletionVectorDescriptor) UniqueID() string {
	if dv == nil {
		return ""
	}
	id := dv.StorageType + dv.PathOrInlineDv
	if dv.Offset != nil {
		id += "@" + strconv.FormatInt(int64(*dv.Offset), 10)
	}
	return id
}

// FileKey identifies a logical file reference during log replay.
// An empty DVUniqueID means the reference carries no deletion vector.
type FileKey struct {
	Path       string
	DVUniqueID string
}

// Add is a data file that became part of the table in some commit.
type Add struct {
	Path                    string                    `json:"path"`
	PartitionValues         map[string]string         `json:"partitionValues"`
	Size                    int64                     `json:"size"`
	ModificationTime        int64                     `json:"modificationTime"`
	DataChange              bool                      `json:"dataChange"`
	Stats                   string                    `json:"stats,omitempty"`
	Tags                    map[string]string         `json:"tags,omitempty"`
	DeletionVector          *DeletionVectorDescriptor `json:"deletionVector,omitempty"`
	BaseRowID               *int64                    `json:"baseRowId,omitempty"`
	DefaultRowCommitVersion *int64                    `json:"defaultRowCommitVersion,omitempty"`
}

// DVUniqueID returns the deletion vector identifier, or "" if none is attached.
func (a *Add) DVUniqueID() string {
	return a.DeletionVector.UniqueID()
}

// Key returns the replay deduplication key of the file.
func (a *Add) Key() FileKey {
	return FileKey{Path: a.Path, DVUniqueID: a.DVUniqueID()}
}

func (a *Add) TypeNode() string {
	return "ADD"
}

// Remove is a tombstone for a data file.
type Remove struct {
	Path                    string                    `json:"path"`
	DeletionTimestamp       *int64                    `json:"deletionTimestamp,omitempty"`
	DataChange              bool                      `json:"dataChange"`
	ExtendedFileMetadata    *bool                     `json:"extendedFileMetadata,omitempty"`
	PartitionValues         map[string]string         `json:"partitionValues,omitempty"`
	Size                    *int64                    `json:"size,omitempty"`
	Tags                    map[string]string         `json:"tags,omitempty"`
	DeletionVector          *DeletionVectorDescriptor `json:"deletionVector,omitempty"`
	BaseRowID               *int64                    `json:"baseRowId,omitempty"`
	DefaultRowCommitVersion *int64                    `json:"defaultRowCommitVersion,omitempty"`
}

func (r *Remove) DVUniqueID() string {
	return r.DeletionVector.UniqueID()
}

func (r *Remove) Key() FileKey {
	return FileKey{Path: r.Path, DVUniqueID: r.DVUniqueID()}
}

// Action is the envelope of one line of a commit or checkpoint file.
// Exactly one of the fields is expected to be set; other action kinds
// (metadata, protocol, commitInfo) are not modelled and are ignored on read.
type Action struct {
	Add    *Add    `json:"add,omitempty"`
	Remove *Remove `json:"remove,omitempty"`
}
