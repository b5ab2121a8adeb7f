// Package predicate translates MongoDB-shaped filter documents into a
// parameterized SQLite WHERE clause over a JSON payload column.
package predicate

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Clause is a ready-to-execute WHERE fragment (always prefixed with
// "1=1" so it composes with AND regardless of whether any field matched)
// plus its positional arguments, in the same order as the clause's "?"
// placeholders.
type Clause struct {
	SQL  string
	Args []any
}

// AlwaysTrue is the fallback clause used when a predicate document fails
// to parse: matches every row rather than none, since a malformed filter
// is treated as "no additional constraint" rather than a hard error.
func AlwaysTrue() Clause { return Clause{SQL: "1=1"} }

var comparisonOps = map[string]string{
	"$eq":  "=",
	"$ne":  "!=",
	"$gt":  ">",
	"$gte": ">=",
	"$lt":  "<",
	"$lte": "<=",
}

// Translate parses a JSON-encoded MongoDB-shaped predicate document and
// builds the corresponding WHERE clause. column is the name of the table
// column holding the JSON payload (e.g. "payload"). A nil or empty doc
// yields AlwaysTrue. A malformed document also yields AlwaysTrue rather
// than an error — callers that want parse failures surfaced can unmarshal
// the document themselves first.
func Translate(column string, doc []byte) Clause {
	if len(doc) == 0 {
		return AlwaysTrue()
	}
	var parsed map[string]any
	if err := json.Unmarshal(doc, &parsed); err != nil {
		return AlwaysTrue()
	}
	return TranslateMap(column, parsed)
}

// TranslateMap builds a WHERE clause from an already-decoded predicate
// document, recursing into nested objects as dotted JSON paths.
func TranslateMap(column string, doc map[string]any) Clause {
	var sql strings.Builder
	var args []any
	sql.WriteString("1=1")

	// Sorted field order keeps generated SQL deterministic, which makes
	// tests and query-plan caching stable across runs.
	fields := make([]string, 0, len(doc))
	for k := range doc {
		fields = append(fields, k)
	}
	sort.Strings(fields)

	for _, field := range fields {
		appendField(&sql, &args, column, field, doc[field])
	}
	return Clause{SQL: sql.String(), Args: args}
}

func appendField(sql *strings.Builder, args *[]any, column, path string, value any) {
	if obj, ok := value.(map[string]any); ok && hasOperatorKey(obj) {
		appendOperators(sql, args, column, path, obj)
		return
	}
	if obj, ok := value.(map[string]any); ok {
		// Nested object without operator keys: treat as a nested path
		// composition, e.g. {"addr":{"city":"NYC"}} -> addr.city = 'NYC'.
		nested := make([]string, 0, len(obj))
		for k := range obj {
			nested = append(nested, k)
		}
		sort.Strings(nested)
		for _, k := range nested {
			appendField(sql, args, column, path+"."+k, obj[k])
		}
		return
	}
	// Scalar shorthand: direct equality.
	jsonPath(sql, column, path)
	sql.WriteString(" = ?")
	*args = append(*args, value)
}

func hasOperatorKey(obj map[string]any) bool {
	for k := range obj {
		if strings.HasPrefix(k, "$") {
			return true
		}
	}
	return false
}

func appendOperators(sql *strings.Builder, args *[]any, column, path string, obj map[string]any) {
	ops := make([]string, 0, len(obj))
	for op := range obj {
		ops = append(ops, op)
	}
	sort.Strings(ops)

	for _, op := range ops {
		val := obj[op]
		switch op {
		case "$eq", "$ne", "$gt", "$gte", "$lt", "$lte":
			jsonPath(sql, column, path)
			fmt.Fprintf(sql, " %s ?", comparisonOps[op])
			*args = append(*args, val)

		case "$exists":
			jsonPath(sql, column, path)
			if truthy(val) {
				sql.WriteString(" IS NOT NULL")
			} else {
				sql.WriteString(" IS NULL")
			}

		case "$in":
			appendInClause(sql, args, column, path, val, false)

		case "$nin":
			appendInClause(sql, args, column, path, val, true)

		default:
			// Unknown operator: ignored rather than failing the whole
			// predicate, matching the always-match-on-ambiguity policy.
		}
	}
}

// appendInClause expands $in/$nin into a parenthesized group of per-item
// comparisons rather than a flat "IN (...)" list, because the field being
// matched may itself hold a JSON array (metadata like {"tags":["a","b"]}):
// a flat IN can only compare the whole array value, never test membership.
// String items compare by direct equality/inequality on the extracted
// value; non-string items go through json_each so an array-valued field
// can be tested element-by-element, matching query_convert.c's
// is_string_comparison split.
func appendInClause(sql *strings.Builder, args *[]any, column, path string, val any, negate bool) {
	items, ok := val.([]any)
	if !ok {
		return
	}
	if len(items) == 0 {
		// An empty $in matches nothing; an empty $nin excludes nothing.
		if negate {
			sql.WriteString(" AND 1=1")
		} else {
			sql.WriteString(" AND 1=0")
		}
		return
	}
	_, isString := items[0].(string)

	sql.WriteString(" AND (")
	for i, item := range items {
		if i > 0 {
			if negate {
				sql.WriteString(" AND ")
			} else {
				sql.WriteString(" OR ")
			}
		}
		if isString {
			fmt.Fprintf(sql, "json_extract(%s, '$.%s')", column, path)
			if negate {
				sql.WriteString(" != ?")
			} else {
				sql.WriteString(" = ?")
			}
			*args = append(*args, item)
		} else {
			if negate {
				sql.WriteString("NOT ")
			}
			fmt.Fprintf(sql, "EXISTS (SELECT 1 FROM json_each(json_extract(%s, '$.%s')) WHERE value = ?)", column, path)
			*args = append(*args, item)
		}
	}
	sql.WriteString(")")
}

func truthy(v any) bool {
	b, ok := v.(bool)
	return ok && b
}

func jsonPath(sql *strings.Builder, column, path string) {
	fmt.Fprintf(sql, " AND json_extract(%s, '$.%s')", column, path)
}
