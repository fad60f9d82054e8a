// Package table reads and writes the contact CSV files a run works on.
package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// utf8BOM is what spreadsheet exports (and "utf-8-sig" writers) put in front of the header.
var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// ErrEmptyInput is returned when the input has no header row.
var ErrEmptyInput = errors.New("input file is empty")

// ErrTooManyFields is returned when a data row is wider than the header.
var ErrTooManyFields = errors.New("row has more fields than the header")

// ErrOverwriteInput is returned when the output path would replace the input.
var ErrOverwriteInput = errors.New("output file would overwrite the input")

// Record is one row keyed by column name. Absent columns read as "".
type Record map[string]string

// Get returns the trimmed value for column, or "" when absent.
func (r Record) Get(column string) string {
	return strings.TrimSpace(r[column])
}

// Table is an ordered header plus ordered rows.
type Table struct {
	Header []string
	Rows   [][]string
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// ColumnIndex returns the position of name in the header, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, h := range t.Header {
		if h == name {
			return i
		}
	}
	return -1
}

// Record returns row i keyed by header. Short rows yield "" for the missing
// cells. When a header name repeats, the first column with that name wins.
func (t *Table) Record(i int) Record {
	rec := make(Record, len(t.Header))
	row := t.Rows[i]
	for j, h := range t.Header {
		if _, seen := rec[h]; seen {
			continue
		}
		if j < len(row) {
			rec[h] = row[j]
		} else {
			rec[h] = ""
		}
	}
	return rec
}

// Clone returns a deep copy.
func (t *Table) Clone() *Table {
	out := &Table{
		Header: append([]string(nil), t.Header...),
		Rows:   make([][]string, len(t.Rows)),
	}
	for i, row := range t.Rows {
		out.Rows[i] = append([]string(nil), row...)
	}
	return out
}

// SetColumn writes values into column name, appending it as the trailing
// column when it is not already present. len(values) must equal Len().
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %q: got %d values for %d rows", name, len(values), len(t.Rows))
	}

	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Header = append(t.Header, name)
		idx = len(t.Header) - 1
	}

	for i := range t.Rows {
		for len(t.Rows[i]) < len(t.Header) {
			t.Rows[i] = append(t.Rows[i], "")
		}
		t.Rows[i][idx] = values[i]
	}
	return nil
}

// Read parses a comma-separated stream with a header row.
// A leading UTF-8 BOM is dropped. Short rows are accepted; a row wider than
// the header is an error.
func Read(r io.Reader) (*Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrEmptyInput
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	var rows [][]string
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		if len(row) > len(header) {
			line, _ := cr.FieldPos(0)
			return nil, fmt.Errorf("line %d: %w (expected %d, saw %d)", line, ErrTooManyFields, len(header), len(row))
		}
		rows = append(rows, row)
	}

	return &Table{Header: header, Rows: rows}, nil
}

// ReadFile opens path and parses it with Read.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// CheckOutputPath fails with ErrOverwriteInput when output names the same
// file as input.
func CheckOutputPath(input, output string) error {
	in, err := filepath.Abs(input)
	if err != nil {
		return err
	}
	out, err := filepath.Abs(output)
	if err != nil {
		return err
	}
	if in == out {
		return fmt.Errorf("%w: %s", ErrOverwriteInput, output)
	}

	inInfo, err := os.Stat(in)
	if err != nil {
		return nil
	}
	if outInfo, err := os.Stat(out); err == nil && os.SameFile(inInfo, outInfo) {
		return fmt.Errorf("%w: %s", ErrOverwriteInput, output)
	}
	return nil
}

// WriteOptions controls serialization.
type WriteOptions struct {
	// BOM prefixes the output with a UTF-8 byte order mark so spreadsheet
	// apps pick the right encoding.
	BOM bool
}

// Write serializes t as CSV.
func Write(w io.Writer, t *Table, opts WriteOptions) error {
	if opts.BOM {
		if _, err := w.Write(utf8BOM); err != nil {
			return err
		}
	}

	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i, row := range t.Rows {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV row %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// WriteFile writes t to path, replacing any existing file.
func WriteFile(path string, t *Table, opts WriteOptions) error {
	var buf bytes.Buffer
	if err := Write(&buf, t, opts); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}
