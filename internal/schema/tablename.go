package schema

import (
	"strings"
	"unicode"

	"db-upsert/internal/errs"
)

// TableName is a normalized (schema, table) pair. Decoration such as [brackets],
// "quotes" or `backticks` is stripped; the dialect re-quotes on output.
type TableName struct {
	Schema string
	Table  string
}

// FullName returns schema.table, or just table when no schema is set.
func (n TableName) FullName() string {
	if n.Schema == "" {
		return n.Table
	}
	return n.Schema + "." + n.Table
}

func (n TableName) String() string { return n.FullName() }

// Key is the case-insensitive lookup key for the name.
func (n TableName) Key() string { return strings.ToLower(n.FullName()) }

// ParseTableName normalizes raw into a TableName, applying defaultSchema when raw has
// no schema part. Dots inside delimiters are part of the identifier.
func ParseTableName(raw, defaultSchema string) (TableName, error) {
	parts, err := splitIdentifier(strings.TrimSpace(raw))
	if err != nil {
		return TableName{}, errs.Configf(errs.ErrInvalidTableName, "%q: %v", raw, err)
	}
	switch len(parts) {
	case 1:
		return TableName{Schema: defaultSchema, Table: parts[0]}, nil
	case 2:
		return TableName{Schema: parts[0], Table: parts[1]}, nil
	default:
		return TableName{}, errs.Configf(errs.ErrInvalidTableName, "%q: expected [schema.]table", raw)
	}
}

type parseError string

func (e parseError) Error() string { return string(e) }

func splitIdentifier(s string) ([]string, error) {
	if s == "" {
		return nil, parseError("empty name")
	}
	var parts []string
	var cur strings.Builder
	quoted := false
	closers := map[rune]rune{'[': ']', '"': '"', '`': '`'}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '.':
			parts = append(parts, cur.String())
			cur.Reset()
			quoted = false
		case closers[r] != 0 && strings.TrimSpace(cur.String()) == "" && !quoted:
			closer := closers[r]
			cur.Reset()
			closed := false
			for i++; i < len(runes); i++ {
				if runes[i] == closer {
					// doubled closer is an escaped literal
					if i+1 < len(runes) && runes[i+1] == closer {
						cur.WriteRune(closer)
						i++
						continue
					}
					closed = true
					break
				}
				cur.WriteRune(runes[i])
			}
			if !closed {
				return nil, parseError("unterminated delimiter")
			}
			quoted = true
		case quoted:
			if !unicode.IsSpace(r) {
				return nil, parseError("unexpected text after delimiter")
			}
		default:
			cur.WriteRune(r)
		}
	}
	parts = append(parts, cur.String())

	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, parseError("empty identifier part")
		}
		for _, r := range p {
			if unicode.IsControl(r) {
				return nil, parseError("control character in identifier")
			}
		}
		parts[i] = p
	}
	return parts, nil
}
