package codec

import "strings"

// splitRow splits one logical row into cells. A double quote toggles quoting;
// inside quotes a doubled quote is one literal quote. Commas separate cells
// only outside quotes.
func splitRow(s string) ([]string, error) {
	var (
		cells    []string
		b        strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' && inQuotes && i+1 < len(s) && s[i+1] == '"':
			b.WriteByte('"')
			i++
		case c == '"':
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			cells = append(cells, b.String())
			b.Reset()
		default:
			b.WriteByte(c)
		}
	}
	if inQuotes {
		return nil, ErrUnclosedQuote
	}
	return append(cells, b.String()), nil
}
