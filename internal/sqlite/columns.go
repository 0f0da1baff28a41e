package sqlite

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/mesh-intelligence/daybook/pkg/schema"
	"github.com/mesh-intelligence/daybook/pkg/types"
)

var errUnexpectedType = errors.New("unexpected stored value")

// storedTimeLayout is second precision, matching the interchange format.
const storedTimeLayout = time.RFC3339

// recordColumn binds a schema column to its records table column.
type recordColumn struct {
	schema.Column
	sqlName string
}

// recordColumns lists the fixed columns of the records table, excluding id.
// The overlay column lives in record_attributes instead.
var recordColumns = func() []recordColumn {
	var cols []recordColumn
	for _, c := range schema.Columns {
		if c.Name == schema.ColID || c.Kind == schema.KindMap {
			continue
		}
		cols = append(cols, recordColumn{Column: c, sqlName: snakeCase(c.Name)})
	}
	return cols
}()

func recordColumnNames() []string {
	names := make([]string, len(recordColumns))
	for i, c := range recordColumns {
		names[i] = c.sqlName
	}
	return names
}

var (
	selectRecordSQL = "SELECT id, " + strings.Join(recordColumnNames(), ", ") + " FROM records"

	upsertRecordSQL = func() string {
		names := recordColumnNames()
		var updates []string
		for _, n := range names {
			switch n {
			case "date":
				continue
			case "updated_at":
				// Stored as fixed-width UTC text, so MAX is chronological.
				updates = append(updates, "updated_at = MAX(updated_at, excluded.updated_at)")
				continue
			}
			updates = append(updates, n+" = excluded."+n)
		}
		return fmt.Sprintf(
			"INSERT INTO records (%s) VALUES (%s) ON CONFLICT(date) DO UPDATE SET %s RETURNING id, updated_at",
			strings.Join(names, ", "),
			placeholders(len(names)),
			strings.Join(updates, ", "),
		)
	}()

	insertRecordWithIDSQL = fmt.Sprintf(
		"INSERT INTO records (id, %s) VALUES (%s)",
		strings.Join(recordColumnNames(), ", "),
		placeholders(len(recordColumns)+1),
	)
)

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// snakeCase converts a camelCase wire name to its table column name.
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('_')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// recordArgs returns the bind arguments for recordColumns in order.
func recordArgs(rec *types.Record) []any {
	args := make([]any, len(recordColumns))
	for i, c := range recordColumns {
		args[i] = toSQL(c.Get(rec))
	}
	return args
}

func toSQL(v schema.Value) any {
	switch v := v.(type) {
	case schema.Bool:
		if v {
			return int64(1)
		}
		return int64(0)
	case schema.OptInt:
		if !v.Valid {
			return nil
		}
		return v.Int
	case schema.OptFloat:
		if !v.Valid {
			return nil
		}
		return v.Float
	case schema.StringList:
		return schema.Encode(v, nil)
	case schema.Text:
		return string(v)
	case schema.OptDate:
		if !v.Valid {
			return nil
		}
		return v.Date.String()
	case schema.OptDateTime:
		if !v.Valid {
			return nil
		}
		return v.Time.UTC().Format(storedTimeLayout)
	default:
		return nil
	}
}

func fromSQL(k schema.Kind, raw any) (schema.Value, error) {
	if b, ok := raw.([]byte); ok {
		raw = string(b)
	}
	switch k {
	case schema.KindBool:
		switch v := raw.(type) {
		case int64:
			return schema.Bool(v != 0), nil
		case bool:
			return schema.Bool(v), nil
		}
	case schema.KindInt:
		switch v := raw.(type) {
		case nil:
			return schema.OptInt{}, nil
		case int64:
			return schema.OptInt{Int: v, Valid: true}, nil
		}
	case schema.KindFloat:
		switch v := raw.(type) {
		case nil:
			return schema.OptFloat{}, nil
		case float64:
			return schema.OptFloat{Float: v, Valid: true}, nil
		case int64:
			return schema.OptFloat{Float: float64(v), Valid: true}, nil
		}
	case schema.KindList:
		switch v := raw.(type) {
		case nil:
			return schema.StringList(nil), nil
		case string:
			return schema.Decode(schema.KindList, v, time.UTC)
		}
	case schema.KindText:
		switch v := raw.(type) {
		case nil:
			return schema.Text(""), nil
		case string:
			return schema.Text(v), nil
		}
	case schema.KindDate:
		switch v := raw.(type) {
		case nil:
			return schema.OptDate{}, nil
		case string:
			return schema.Decode(schema.KindDate, v, time.UTC)
		}
	case schema.KindDateTime:
		switch v := raw.(type) {
		case nil:
			return schema.OptDateTime{}, nil
		case time.Time:
			return schema.OptDateTime{Time: v.UTC(), Valid: true}, nil
		case string:
			t, err := time.Parse(storedTimeLayout, v)
			if err != nil {
				return nil, fmt.Errorf("%w: %q is not a timestamp", errUnexpectedType, v)
			}
			return schema.OptDateTime{Time: t.UTC(), Valid: true}, nil
		}
	}
	return nil, fmt.Errorf("%w: %v column holds %T", errUnexpectedType, k, raw)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// scanRecord reads one row produced by selectRecordSQL.
func scanRecord(row rowScanner) (types.Record, error) {
	raw := make([]any, len(recordColumns))
	dest := make([]any, len(recordColumns)+1)
	var id int64
	dest[0] = &id
	for i := range raw {
		dest[i+1] = &raw[i]
	}
	if err := row.Scan(dest...); err != nil {
		return types.Record{}, err
	}

	rec := types.Record{ID: id}
	for i, c := range recordColumns {
		v, err := fromSQL(c.Kind, raw[i])
		if err != nil {
			return types.Record{}, fmt.Errorf("record %d column %s: %w", id, c.sqlName, err)
		}
		if err := c.Set(&rec, v); err != nil {
			return types.Record{}, fmt.Errorf("record %d: %w", id, err)
		}
	}
	return rec, nil
}
