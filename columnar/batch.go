package columnar

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/INLOpen/nexuslog/core"
	"github.com/RoaringBitmap/roaring"
	"github.com/tidwall/gjson"
)

// maxLineSize bounds a single action line in a commit or checkpoint payload.
const maxLineSize = 64 * 1024 * 1024

// Batch is an in-memory EngineData holding one raw JSON action per row.
// Columns are projected on demand by the Extractor.
type Batch struct {
	rows []string
}

var _ core.SelectableData = (*Batch)(nil)

// NewBatch wraps already validated JSON rows.
func NewBatch(rows []string) *Batch {
	return &Batch{rows: rows}
}

// DecodeJSONLines reads newline-delimited JSON actions. Blank lines are
// skipped; any other line must be a JSON object.
func DecodeJSONLines(r io.Reader) (*Batch, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	var rows []string
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		if !gjson.ValidBytes(line) || line[0] != '{' {
			return nil, fmt.Errorf("malformed action at line %d", lineNo)
		}
		rows = append(rows, string(line))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read actions: %w", err)
	}
	return &Batch{rows: rows}, nil
}

// FromActions encodes typed actions into a batch, one row per action.
func FromActions(actions ...core.Action) (*Batch, error) {
	rows := make([]string, 0, len(actions))
	for i, a := range actions {
		data, err := json.Marshal(a)
		if err != nil {
			return nil, fmt.Errorf("failed to encode action %d: %w", i, err)
		}
		rows = append(rows, string(data))
	}
	return &Batch{rows: rows}, nil
}

func (b *Batch) Len() int {
	return len(b.rows)
}

// Row returns the raw JSON of a row.
func (b *Batch) Row(i int) string {
	return b.rows[i]
}

// Select returns a batch containing only the rows in the bitmap, in their
// original order. Indexes beyond the batch are ignored.
func (b *Batch) Select(rows *roaring.Bitmap) core.EngineData {
	if rows == nil || rows.GetCardinality() == uint64(len(b.rows)) {
		return b
	}
	selected := make([]string, 0, rows.GetCardinality())
	it := rows.Iterator()
	for it.HasNext() {
		idx := int(it.Next())
		if idx >= len(b.rows) {
			break
		}
		selected = append(selected, b.rows[idx])
	}
	return &Batch{rows: selected}
}

// WriteTo writes the batch back out as newline-delimited JSON.
func (b *Batch) WriteTo(w io.Writer) (int64, error) {
	var written int64
	for _, row := range b.rows {
		n, err := io.WriteString(w, row+"\n")
		written += int64(n)
		if err != nil {
			return written, err
		}
	}
	return written, nil
}
