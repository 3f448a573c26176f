package checkpoint

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/INLOpen/nexuslog/columnar"
	"github.com/INLOpen/nexuslog/compressors"
	"github.com/INLOpen/nexuslog/core"
)

const (
	// MagicNumber opens every checkpoint payload file ("NXCK").
	MagicNumber uint32 = 0x4E58434B
	// FileSuffix is appended to the zero-padded version of a checkpoint file.
	FileSuffix = ".checkpoint.nxc"
	// LastCheckpointFileName holds the hint to the newest checkpoint.
	LastCheckpointFileName = "_last_checkpoint"

	// magic + compression type + payload length
	headerSize = 4 + 1 + 4
)

// FileName returns the checkpoint file name for version.
func FileName(version int64) string {
	return fmt.Sprintf("%020d%s", version, FileSuffix)
}

// ParseFileName returns the version of a checkpoint file name.
func ParseFileName(name string) (int64, bool) {
	digits, ok := strings.CutSuffix(name, FileSuffix)
	if !ok || len(digits) != 20 {
		return 0, false
	}
	v, err := strconv.ParseInt(digits, 10, 64)
	if err != nil || v < 0 {
		return 0, false
	}
	return v, true
}

// Write atomically writes a checkpoint of version into the log directory dir
// using the write-and-rename strategy. actions is the reconciled state: the
// live adds, plus any removes kept for vacuum bookkeeping.
func Write(dir string, version int64, actions []core.Action, ct core.CompressionType) error {
	compressor, err := compressors.ForType(ct)
	if err != nil {
		return fmt.Errorf("failed to write checkpoint %d: %w", version, err)
	}
	batch, err := columnar.FromActions(actions...)
	if err != nil {
		return fmt.Errorf("failed to encode checkpoint %d: %w", version, err)
	}
	raw := core.EncodeBuffers.Get()
	defer core.EncodeBuffers.Put(raw)
	if _, err := batch.WriteTo(raw); err != nil {
		return fmt.Errorf("failed to encode checkpoint %d: %w", version, err)
	}
	payload, err := compressor.Compress(raw.Bytes())
	if err != nil {
		return fmt.Errorf("failed to compress checkpoint %d: %w", version, err)
	}

	buf := make([]byte, headerSize, headerSize+len(payload)+core.ChecksumSize)
	binary.LittleEndian.PutUint32(buf[0:4], MagicNumber)
	buf[4] = byte(ct)
	binary.LittleEndian.PutUint32(buf[5:9], uint32(len(payload)))
	buf = append(buf, payload...)
	buf = binary.LittleEndian.AppendUint32(buf, crc32.ChecksumIEEE(payload))

	return writeAtomic(filepath.Join(dir, FileName(version)), buf)
}

// Read loads the checkpoint of version from dir. found is false, with no
// error, when no such checkpoint exists.
func Read(dir string, version int64) (*columnar.Batch, bool, error) {
	batch, err := ReadFile(filepath.Join(dir, FileName(version)))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, true, err
	}
	return batch, true, nil
}

// ReadFile decodes a checkpoint file into a batch of actions.
func ReadFile(path string) (*columnar.Batch, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open checkpoint file: %w", err)
	}
	if len(data) < headerSize+core.ChecksumSize {
		return nil, fmt.Errorf("checkpoint file %s is truncated (%d bytes)", filepath.Base(path), len(data))
	}
	if magic := binary.LittleEndian.Uint32(data[0:4]); magic != MagicNumber {
		return nil, fmt.Errorf("invalid checkpoint magic number: got %x, want %x", magic, MagicNumber)
	}
	ct := core.CompressionType(data[4])
	payloadLen := int(binary.LittleEndian.Uint32(data[5:9]))
	if len(data) != headerSize+payloadLen+core.ChecksumSize {
		return nil, fmt.Errorf("checkpoint file %s: payload length %d does not match file size %d", filepath.Base(path), payloadLen, len(data))
	}

	payload := data[headerSize : headerSize+payloadLen]
	storedChecksum := binary.LittleEndian.Uint32(data[headerSize+payloadLen:])
	if calculated := crc32.ChecksumIEEE(payload); calculated != storedChecksum {
		return nil, fmt.Errorf("checkpoint file %s: checksum mismatch (stored %x, calculated %x)", filepath.Base(path), storedChecksum, calculated)
	}

	compressor, err := compressors.ForType(ct)
	if err != nil {
		return nil, fmt.Errorf("checkpoint file %s: %w", filepath.Base(path), err)
	}
	raw, err := compressor.Decompress(payload)
	if err != nil {
		return nil, fmt.Errorf("checkpoint file %s: %w", filepath.Base(path), err)
	}
	batch, err := columnar.DecodeJSONLines(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("checkpoint file %s: %w", filepath.Base(path), err)
	}
	return batch, nil
}

// LastCheckpoint is the content of the _last_checkpoint hint.
type LastCheckpoint struct {
	Version int64 `json:"version"`
	// Size is the number of actions in the checkpoint.
	Size int64 `json:"size,omitempty"`
}

// WriteLastCheckpoint atomically replaces the _last_checkpoint hint in dir.
func WriteLastCheckpoint(dir string, lc LastCheckpoint) error {
	data, err := json.Marshal(lc)
	if err != nil {
		return fmt.Errorf("failed to encode last checkpoint: %w", err)
	}
	return writeAtomic(filepath.Join(dir, LastCheckpointFileName), data)
}

// ReadLastCheckpoint reads the _last_checkpoint hint in dir. If the file does
// not exist, it returns found=false and no error.
func ReadLastCheckpoint(dir string) (LastCheckpoint, bool, error) {
	data, err := os.ReadFile(filepath.Join(dir, LastCheckpointFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return LastCheckpoint{}, false, nil
		}
		return LastCheckpoint{}, false, fmt.Errorf("failed to read last checkpoint: %w", err)
	}
	var lc LastCheckpoint
	if err := json.Unmarshal(data, &lc); err != nil {
		return LastCheckpoint{}, true, fmt.Errorf("failed to decode last checkpoint: %w", err)
	}
	if lc.Version < 0 {
		return LastCheckpoint{}, true, fmt.Errorf("invalid last checkpoint version %d", lc.Version)
	}
	return lc, true, nil
}

func writeAtomic(finalPath string, data []byte) error {
	tempPath := finalPath + ".tmp"
	file, err := os.Create(tempPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file %s: %w", filepath.Base(tempPath), err)
	}
	if _, err := file.Write(data); err != nil {
		file.Close()
		return fmt.Errorf("failed to write temp file %s: %w", filepath.Base(tempPath), err)
	}
	if err := file.Sync(); err != nil {
		file.Close()
		return fmt.Errorf("failed to sync temp file %s: %w", filepath.Base(tempPath), err)
	}
	// Close before renaming; Windows refuses to rename open files.
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close temp file %s before rename: %w", filepath.Base(tempPath), err)
	}
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", filepath.Base(tempPath), filepath.Base(finalPath), err)
	}
	return nil
}
