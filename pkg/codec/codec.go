// Package codec reads and writes the daybook interchange file: a header row
// of column names followed by one row per record, every cell double-quoted.
//
// Decoding is resilient. A malformed row is dropped and reported; it never
// aborts the file.
package codec

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/mesh-intelligence/daybook/pkg/schema"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

// File and row errors.
var (
	ErrUnrecognizedFile = errors.New("unrecognized file: header must name date and createdAt")
	ErrUnclosedQuote    = errors.New("unclosed quote")
	ErrColumnCount      = errors.New("cell count does not match header")
)

// requiredHeader lists the columns whose absence marks a file as foreign.
var requiredHeader = []string{schema.ColDate, schema.ColCreatedAt}

// Codec encodes and decodes records. Date-times are read and written as wall
// clock in the codec's location. A Codec has no mutable state and is safe
// for concurrent use.
type Codec struct {
	loc *time.Location
}

// New returns a codec for loc. A nil loc means time.Local.
func New(loc *time.Location) *Codec {
	return &Codec{loc: loc}
}

func (c *Codec) location() *time.Location {
	if c == nil || c.loc == nil {
		return time.Local
	}
	return c.loc
}

// Rejection describes one dropped row.
type Rejection struct {
	Line   int // 1-based physical line where the row starts
	Reason error
}

func (r Rejection) String() string {
	return fmt.Sprintf("line %d: %v", r.Line, r.Reason)
}

// Result is the outcome of decoding a file. Lines[i] is the physical line
// where Records[i] starts.
type Result struct {
	Records  []types.Record
	Lines    []int
	Rejected []Rejection
}

// RejectedCount returns the number of dropped rows.
func (r *Result) RejectedCount() int {
	return len(r.Rejected)
}

// Encode renders records with the default codec.
func Encode(records []types.Record) string {
	return New(nil).Encode(records)
}

// Decode parses text with the default codec.
func Decode(text string) (*Result, error) {
	return New(nil).Decode(text)
}

// Encode renders the header and one row per record. Output is deterministic
// for a given input and location.
func (c *Codec) Encode(records []types.Record) string {
	var b strings.Builder
	_ = c.Write(&b, records)
	return b.String()
}

// Write streams the encoded file to w.
func (c *Codec) Write(w io.Writer, records []types.Record) error {
	loc := c.location()
	cells := make([]string, len(schema.Columns))

	for i, col := range schema.Columns {
		cells[i] = col.Name
	}
	if err := writeRow(w, cells); err != nil {
		return err
	}
	for i := range records {
		for j, col := range schema.Columns {
			cells[j] = col.EncodeCell(&records[i], loc)
		}
		if err := writeRow(w, cells); err != nil {
			return err
		}
	}
	return nil
}

func writeRow(w io.Writer, cells []string) error {
	var b strings.Builder
	for i, cell := range cells {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteByte('"')
		b.WriteString(strings.ReplaceAll(cell, `"`, `""`))
		b.WriteByte('"')
	}
	b.WriteByte('\n')
	_, err := io.WriteString(w, b.String())
	return err
}

// Decode parses text into records. It returns ErrUnrecognizedFile when the
// input is empty or its header lacks a required column; every other problem
// is confined to the row it occurs in and reported in Result.Rejected.
func (c *Codec) Decode(text string) (*Result, error) {
	text = strings.TrimPrefix(text, "\ufeff")
	if strings.TrimSpace(text) == "" {
		return nil, ErrUnrecognizedFile
	}
	lines := strings.Split(text, "\n")

	first := 0
	for strings.TrimSpace(lines[first]) == "" {
		first++
	}
	header, err := splitRow(trimCR(lines[first]))
	if err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrUnrecognizedFile, err)
	}
	index := headerIndex(header)
	for _, name := range requiredHeader {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrUnrecognizedFile, name)
		}
	}

	res := &Result{}
	reject := func(i int, err error) {
		res.Rejected = append(res.Rejected, Rejection{Line: i + 1, Reason: err})
	}

	for i := first + 1; i < len(lines); {
		if strings.TrimSpace(lines[i]) == "" {
			i++
			continue
		}

		row, next, ok := gather(lines, i)
		if !ok {
			reject(i, ErrUnclosedQuote)
			i++
			continue
		}
		rec, err := c.decodeCells(row, header, index)
		if err != nil {
			// A bad join may have swallowed good rows; retry from the next line.
			reject(i, err)
			i++
			continue
		}
		res.Records = append(res.Records, rec)
		res.Lines = append(res.Lines, i+1)
		i = next
	}
	return res, nil
}

// gather returns the logical row starting at lines[i]. A row whose quotes
// are still open at the end of a line continues on the following lines,
// joined with "\n". Only the row's final line loses a trailing "\r", so
// CRLF inside a quoted cell survives. ok is false when the quotes never
// close.
func gather(lines []string, i int) (row string, next int, ok bool) {
	if strings.Count(lines[i], `"`)%2 == 0 {
		return trimCR(lines[i]), i + 1, true
	}
	var b strings.Builder
	b.WriteString(lines[i])
	for j := i + 1; j < len(lines); j++ {
		b.WriteByte('\n')
		if strings.Count(lines[j], `"`)%2 == 1 {
			b.WriteString(trimCR(lines[j]))
			return b.String(), j + 1, true
		}
		b.WriteString(lines[j])
	}
	return "", i + 1, false
}

func (c *Codec) decodeCells(row string, header []string, index map[string]int) (types.Record, error) {
	cells, err := splitRow(row)
	if err != nil {
		return types.Record{}, err
	}
	if len(cells) != len(header) {
		return types.Record{}, fmt.Errorf("%w: got %d, want %d", ErrColumnCount, len(cells), len(header))
	}
	return c.decodeRow(cells, index)
}

func (c *Codec) decodeRow(cells []string, index map[string]int) (types.Record, error) {
	loc := c.location()
	var rec types.Record
	for _, col := range schema.Columns {
		v := col.Default()
		if idx, ok := index[col.Name]; ok {
			var err error
			if v, err = col.DecodeCell(cells[idx], loc); err != nil {
				return types.Record{}, err
			}
		}
		if err := col.Set(&rec, v); err != nil {
			return types.Record{}, err
		}
	}
	return rec, nil
}

// headerIndex maps column names to cell positions. The first occurrence of a
// duplicated name wins.
func headerIndex(header []string) map[string]int {
	index := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if _, dup := index[name]; dup {
			continue
		}
		index[name] = i
	}
	return index
}

func trimCR(s string) string {
	return strings.TrimSuffix(s, "\r")
}
