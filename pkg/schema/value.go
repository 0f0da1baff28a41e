// Package schema defines the fixed column set of a daybook record and the
// value domains those columns hold. Every column value is one of a small
// closed set of variants, and each variant has exactly one text encoding
// and one decoder.
package schema

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mesh-intelligence/daybook/pkg/types"
)

// Kind identifies a value variant.
type Kind int

// Value variants.
const (
	KindBool Kind = iota + 1
	KindInt
	KindFloat
	KindList
	KindText
	KindDate
	KindDateTime
	KindMap
)

var kindNames = map[Kind]string{
	KindBool:     "bool",
	KindInt:      "int",
	KindFloat:    "float",
	KindList:     "list",
	KindText:     "text",
	KindDate:     "date",
	KindDateTime: "datetime",
	KindMap:      "map",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Wire-level separators and layouts.
const (
	ListSeparator  = "|"
	PairSeparator  = "="
	escapeChar     = '\\'
	DateTimeLayout = "2006-01-02T15:04:05"
)

// Field-level decode errors.
var (
	ErrInvalidBool     = errors.New("expected true or false")
	ErrInvalidNumber   = errors.New("not a number")
	ErrOutOfRange      = errors.New("value out of range")
	ErrInvalidDate     = errors.New("not an ISO-8601 date")
	ErrInvalidDateTime = errors.New("not an ISO-8601 date-time")
	ErrInvalidMapEntry = errors.New("malformed key=value entry")
	ErrMissingValue    = errors.New("value is required")
	ErrKindMismatch    = errors.New("value kind does not match column")
)

// Value is a column value. The set of implementations is closed: Bool,
// OptInt, OptFloat, StringList, Text, OptDate, OptDateTime and AttributeMap.
type Value interface {
	Kind() Kind
}

// Bool is a required true/false answer.
type Bool bool

// OptInt is an optional integer. Valid is false for "not answered".
type OptInt struct {
	Int   int64
	Valid bool
}

// OptFloat is an optional float.
type OptFloat struct {
	Float float64
	Valid bool
}

// StringList is an ordered multi-select answer.
type StringList []string

// Text is free text. The empty string is a real value, not null.
type Text string

// OptDate is an optional calendar date.
type OptDate struct {
	Date  types.Date
	Valid bool
}

// OptDateTime is an optional naive local date-time with second precision.
type OptDateTime struct {
	Time  time.Time
	Valid bool
}

// AttributeMap is the flattened attribute overlay of one record.
type AttributeMap map[string]string

func (Bool) Kind() Kind         { return KindBool }
func (OptInt) Kind() Kind       { return KindInt }
func (OptFloat) Kind() Kind     { return KindFloat }
func (StringList) Kind() Kind   { return KindList }
func (Text) Kind() Kind         { return KindText }
func (OptDate) Kind() Kind      { return KindDate }
func (OptDateTime) Kind() Kind  { return KindDateTime }
func (AttributeMap) Kind() Kind { return KindMap }

// Encode renders v as cell text. Date-times are written as wall clock in loc.
func Encode(v Value, loc *time.Location) string {
	switch v := v.(type) {
	case Bool:
		return encodeBool(v)
	case OptInt:
		return encodeInt(v)
	case OptFloat:
		return encodeFloat(v)
	case StringList:
		return encodeList(v)
	case Text:
		return string(v)
	case OptDate:
		return encodeDate(v)
	case OptDateTime:
		return encodeDateTime(v, loc)
	case AttributeMap:
		return encodeMap(v)
	default:
		return ""
	}
}

// Decode parses cell text as a value of kind k. Date-times are read as wall
// clock in loc.
func Decode(k Kind, cell string, loc *time.Location) (Value, error) {
	switch k {
	case KindBool:
		return decodeBool(cell)
	case KindInt:
		return decodeInt(cell)
	case KindFloat:
		return decodeFloat(cell)
	case KindList:
		return decodeList(cell), nil
	case KindText:
		return Text(cell), nil
	case KindDate:
		return decodeDate(cell)
	case KindDateTime:
		return decodeDateTime(cell, loc)
	case KindMap:
		return decodeMap(cell)
	default:
		return nil, fmt.Errorf("%w: unknown kind %v", ErrKindMismatch, k)
	}
}

func encodeBool(v Bool) string {
	return strconv.FormatBool(bool(v))
}

// decodeBool accepts exactly "true" and "false". strconv.ParseBool is too
// lenient ("1", "T", "TRUE").
func decodeBool(cell string) (Value, error) {
	switch cell {
	case "true":
		return Bool(true), nil
	case "false":
		return Bool(false), nil
	default:
		return nil, ErrInvalidBool
	}
}

func encodeInt(v OptInt) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatInt(v.Int, 10)
}

func decodeInt(cell string) (Value, error) {
	if cell == "" {
		return OptInt{}, nil
	}
	n, err := strconv.ParseInt(cell, 10, 64)
	if err != nil {
		return nil, ErrInvalidNumber
	}
	return OptInt{Int: n, Valid: true}, nil
}

func encodeFloat(v OptFloat) string {
	if !v.Valid {
		return ""
	}
	return strconv.FormatFloat(v.Float, 'f', -1, 64)
}

func decodeFloat(cell string) (Value, error) {
	if cell == "" {
		return OptFloat{}, nil
	}
	f, err := strconv.ParseFloat(cell, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, ErrInvalidNumber
	}
	return OptFloat{Float: f, Valid: true}, nil
}

// encodeList joins elements with "|". Elements must not contain "|"; the
// entry form strips it before a value reaches the record.
func encodeList(v StringList) string {
	return strings.Join(v, ListSeparator)
}

// decodeList splits on "|" and drops blank elements. Order is preserved and
// duplicates are kept. An empty cell is a nil list.
func decodeList(cell string) StringList {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	parts := strings.Split(cell, ListSeparator)
	out := make(StringList, 0, len(parts))
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			continue
		}
		out = append(out, p)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func encodeDate(v OptDate) string {
	if !v.Valid {
		return ""
	}
	return v.Date.String()
}

func decodeDate(cell string) (Value, error) {
	if cell == "" {
		return OptDate{}, nil
	}
	t, err := time.Parse(types.DateLayout, cell)
	if err != nil {
		return nil, ErrInvalidDate
	}
	return OptDate{Date: types.DateOf(t), Valid: true}, nil
}

func encodeDateTime(v OptDateTime, loc *time.Location) string {
	if !v.Valid {
		return ""
	}
	if loc != nil {
		return v.Time.In(loc).Format(DateTimeLayout)
	}
	return v.Time.Format(DateTimeLayout)
}

func decodeDateTime(cell string, loc *time.Location) (Value, error) {
	if cell == "" {
		return OptDateTime{}, nil
	}
	if loc == nil {
		loc = time.Local
	}
	t, err := time.ParseInLocation(DateTimeLayout, cell, loc)
	if err != nil {
		return nil, ErrInvalidDateTime
	}
	return OptDateTime{Time: t, Valid: true}, nil
}

// encodeMap writes key=value pairs joined by "|", sorted by key. Backslash,
// "|" and "=" inside keys and values are escaped with a backslash so any
// text survives a round trip.
func encodeMap(m AttributeMap) string {
	if len(m) == 0 {
		return ""
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteString(ListSeparator)
		}
		writeEscaped(&b, k)
		b.WriteString(PairSeparator)
		writeEscaped(&b, m[k])
	}
	return b.String()
}

func writeEscaped(b *strings.Builder, s string) {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case escapeChar, '|', '=':
			b.WriteByte(escapeChar)
		}
		b.WriteByte(s[i])
	}
}

// decodeMap splits on unescaped "|" and cuts each pair at its first
// unescaped "=". Later "=" characters stay in the value, so files written
// without escaping still decode first-"="-wins. A pair with no "=" or an
// empty key is an error; blank pairs are skipped.
func decodeMap(cell string) (Value, error) {
	if strings.TrimSpace(cell) == "" {
		return AttributeMap(nil), nil
	}
	out := make(AttributeMap)
	for _, pair := range splitUnescaped(cell, '|') {
		if strings.TrimSpace(pair) == "" {
			continue
		}
		eq := indexUnescaped(pair, '=')
		if eq < 0 {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMapEntry, pair)
		}
		key := unescape(pair[:eq])
		if key == "" {
			return nil, fmt.Errorf("%w: empty key in %q", ErrInvalidMapEntry, pair)
		}
		out[key] = unescape(pair[eq+1:])
	}
	if len(out) == 0 {
		return AttributeMap(nil), nil
	}
	return out, nil
}

// splitUnescaped splits s on sep, ignoring separators preceded by the escape
// character. Escape sequences are left in place for unescape.
func splitUnescaped(s string, sep byte) []string {
	var parts []string
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case escapeChar:
			i++
		case sep:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

func indexUnescaped(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case escapeChar:
			i++
		case c:
			return i
		}
	}
	return -1
}

// unescape drops one backslash before any character. A trailing lone
// backslash is kept literally.
func unescape(s string) string {
	if strings.IndexByte(s, escapeChar) < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == escapeChar && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
