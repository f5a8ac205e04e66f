package dblib

import (
	"fmt"
	"strconv"
	"strings"
)

// quoteQualified splits on '.' and quotes each identifier part independently.
func quoteQualified(h DatabaseHandler, qualified string) string {
	parts := strings.Split(qualified, ".")
	for i, p := range parts {
		parts[i] = h.QuoteIdent(p)
	}
	return strings.Join(parts, ".")
}

// isSafeUnquotedIdent returns true if ident can be used without quotes in a
// portable way across supported databases (lowercase [a-z_][a-z0-9_]* and not a
// common reserved keyword).
func isSafeUnquotedIdent(ident string) bool {
	if ident == "" {
		return false
	}
	c0 := ident[0]
	if !((c0 >= 'a' && c0 <= 'z') || c0 == '_') {
		return false
	}
	for i := 1; i < len(ident); i++ {
		c := ident[i]
		if !((c >= 'a' && c <= 'z') || (c >= '0' && c <= '9') || c == '_') {
			return false
		}
	}
	if _, ok := commonReservedIdents[ident]; ok {
		return false
	}
	return true
}

// Small, conservative set of common SQL reserved keywords to avoid unquoted.
var commonReservedIdents = map[string]struct{}{
	// DML/DDL
	"select": {}, "insert": {}, "update": {}, "delete": {}, "into": {}, "values": {},
	"create": {}, "alter": {}, "drop": {}, "table": {}, "index": {}, "view": {},
	// Clauses
	"from": {}, "where": {}, "group": {}, "order": {}, "by": {}, "having": {},
	"limit": {}, "offset": {}, "join": {}, "inner": {}, "left": {}, "right": {}, "full": {}, "outer": {},
	// Operators/Predicates
	"and": {}, "or": {}, "not": {}, "in": {}, "is": {}, "like": {}, "between": {}, "exists": {},
	// Literals
	"null": {}, "true": {}, "false": {},
	// Access
	"date": {}, "time": {}, "name": {}, "text": {}, "value": {}, "level": {}, "password": {},
	// Misc
	"as": {}, "on": {},
}

// toDBValue converts display text into a typed parameter for the column type.
// NullGlyph becomes NULL; text that does not parse for a numeric or boolean
// column is passed through and left to the database to reject.
func toDBValue(colType, raw string) any {
	if raw == NullGlyph {
		return nil
	}
	t := strings.ToLower(colType)
	switch {
	case strings.Contains(t, "bool") || t == "bit" || t == "yesno":
		lower := strings.ToLower(strings.TrimSpace(raw))
		if lower == "1" || lower == "true" || lower == "t" || lower == "yes" {
			return true
		}
		if lower == "0" || lower == "false" || lower == "f" || lower == "no" {
			return false
		}
		return raw
	case strings.Contains(t, "int") || t == "counter" || t == "long" || t == "short":
		if v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
			return v
		}
		return raw
	case strings.Contains(t, "real") || strings.Contains(t, "double") || strings.Contains(t, "float") ||
		strings.Contains(t, "numeric") || strings.Contains(t, "decimal") || t == "currency" || t == "single":
		if v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64); err == nil {
			return v
		}
		return raw
	default:
		return raw
	}
}

// isTextType reports whether an empty string is a meaningful value for the type.
func isTextType(colType string) bool {
	t := strings.ToLower(colType)
	if t == "" {
		return true
	}
	for _, s := range []string{"char", "text", "clob", "string", "memo", "varchar", "longchar"} {
		if strings.Contains(t, s) {
			return true
		}
	}
	return false
}

// formatLiteral renders a value as a SQL literal for confirmation prompts and
// logs. It is never used to build executed statements.
func formatLiteral(val any) string {
	if val == nil {
		return "NULL"
	}
	switch v := val.(type) {
	case bool:
		if v {
			return "TRUE"
		}
		return "FALSE"
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case []byte:
		return "'" + strings.ReplaceAll(string(v), "'", "''") + "'"
	case string:
		if v == NullGlyph {
			return "NULL"
		}
		return "'" + strings.ReplaceAll(v, "'", "''") + "'"
	default:
		return "'" + strings.ReplaceAll(fmt.Sprintf("%v", v), "'", "''") + "'"
	}
}

// whereKey builds "k1 = ? AND k2 IS NULL ..." for the anchor, starting at
// placeholder position pos. NULL anchors compare with IS NULL and take no
// argument.
func whereKey(h DatabaseHandler, keyCols []string, anchor []any, pos int) (string, []any) {
	parts := make([]string, 0, len(keyCols))
	args := make([]any, 0, len(keyCols))
	for i, col := range keyCols {
		if anchor[i] == nil {
			parts = append(parts, h.QuoteIdent(col)+" IS NULL")
			continue
		}
		parts = append(parts, fmt.Sprintf("%s = %s", h.QuoteIdent(col), h.Placeholder(pos)))
		args = append(args, anchor[i])
		pos++
	}
	return strings.Join(parts, " AND "), args
}

// describeAnchor renders "id = 5 AND code = 'x'" for user-facing prompts.
func describeAnchor(keyCols []string, anchor []any) string {
	parts := make([]string, len(keyCols))
	for i, col := range keyCols {
		parts[i] = fmt.Sprintf("%s = %s", col, formatLiteral(anchor[i]))
	}
	return strings.Join(parts, " AND ")
}
