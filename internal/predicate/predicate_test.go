package predicate

import (
	"strings"
	"testing"
)

func TestTranslateEmptyDocIsAlwaysTrue(t *testing.T) {
	c := Translate("payload", nil)
	if c.SQL != "1=1" || len(c.Args) != 0 {
		t.Fatalf("got %+v", c)
	}
}

func TestTranslateMalformedDocFallsBackToAlwaysTrue(t *testing.T) {
	c := Translate("payload", []byte(`{not json`))
	if c.SQL != "1=1" {
		t.Fatalf("got %q", c.SQL)
	}
}

func TestTranslateScalarShorthandIsEquality(t *testing.T) {
	c := Translate("payload", []byte(`{"tag":"red"}`))
	if !strings.Contains(c.SQL, "json_extract(payload, '$.tag') = ?") {
		t.Fatalf("got %q", c.SQL)
	}
	if len(c.Args) != 1 || c.Args[0] != "red" {
		t.Fatalf("got args %+v", c.Args)
	}
}

func TestTranslateComparisonOperators(t *testing.T) {
	c := Translate("payload", []byte(`{"age":{"$gte":21,"$lt":65}}`))
	if !strings.Contains(c.SQL, "$.age') >= ?") || !strings.Contains(c.SQL, "$.age') < ?") {
		t.Fatalf("got %q", c.SQL)
	}
	if len(c.Args) != 2 {
		t.Fatalf("want 2 args, got %+v", c.Args)
	}
}

func TestTranslateExistsTrueAndFalse(t *testing.T) {
	c := Translate("payload", []byte(`{"bio":{"$exists":true}}`))
	if !strings.Contains(c.SQL, "IS NOT NULL") {
		t.Fatalf("got %q", c.SQL)
	}
	c2 := Translate("payload", []byte(`{"bio":{"$exists":false}}`))
	if !strings.Contains(c2.SQL, "IS NULL") {
		t.Fatalf("got %q", c2.SQL)
	}
}

func TestTranslateInAndNinOverStrings(t *testing.T) {
	// String-valued $in/$nin compare the extracted scalar directly rather
	// than going through json_each, matching query_convert.c's
	// is_string_comparison branch.
	c := Translate("payload", []byte(`{"tag":{"$in":["a","b","c"]}}`))
	want := "json_extract(payload, '$.tag') = ? OR json_extract(payload, '$.tag') = ? OR json_extract(payload, '$.tag') = ?"
	if !strings.Contains(c.SQL, want) {
		t.Fatalf("got %q", c.SQL)
	}
	if len(c.Args) != 3 {
		t.Fatalf("got args %+v", c.Args)
	}

	c2 := Translate("payload", []byte(`{"tag":{"$nin":["a"]}}`))
	if !strings.Contains(c2.SQL, "json_extract(payload, '$.tag') != ?") {
		t.Fatalf("got %q", c2.SQL)
	}
}

func TestTranslateInAndNinOverArrayValuedField(t *testing.T) {
	// Non-string $in/$nin items must go through json_each so a field whose
	// value is itself a JSON array (e.g. {"ids":[1,5]} matched against
	// {"ids":{"$in":[1,2]}}) can be tested element-by-element; a flat IN
	// could only compare the array as a whole.
	c := Translate("payload", []byte(`{"ids":{"$in":[1,2]}}`))
	want := "EXISTS (SELECT 1 FROM json_each(json_extract(payload, '$.ids')) WHERE value = ?) OR " +
		"EXISTS (SELECT 1 FROM json_each(json_extract(payload, '$.ids')) WHERE value = ?)"
	if !strings.Contains(c.SQL, want) {
		t.Fatalf("got %q", c.SQL)
	}
	if len(c.Args) != 2 || c.Args[0] != float64(1) || c.Args[1] != float64(2) {
		t.Fatalf("got args %+v", c.Args)
	}

	c2 := Translate("payload", []byte(`{"ids":{"$nin":[3]}}`))
	if !strings.Contains(c2.SQL, "NOT EXISTS (SELECT 1 FROM json_each(json_extract(payload, '$.ids')) WHERE value = ?)") {
		t.Fatalf("got %q", c2.SQL)
	}
}

func TestTranslateEmptyInAndNinAvoidInvalidSQL(t *testing.T) {
	c := Translate("payload", []byte(`{"tag":{"$in":[]}}`))
	if !strings.Contains(c.SQL, "1=0") || len(c.Args) != 0 {
		t.Fatalf("want empty $in to match nothing with no args, got %+v", c)
	}

	c2 := Translate("payload", []byte(`{"tag":{"$nin":[]}}`))
	if !strings.Contains(c2.SQL, "1=1") || len(c2.Args) != 0 {
		t.Fatalf("want empty $nin to match everything with no args, got %+v", c2)
	}
}

func TestTranslateNestedObjectComposesDottedPath(t *testing.T) {
	c := Translate("payload", []byte(`{"addr":{"city":"NYC"}}`))
	if !strings.Contains(c.SQL, "$.addr.city') = ?") {
		t.Fatalf("got %q", c.SQL)
	}
}

func TestTranslateMultipleFieldsAreAndComposed(t *testing.T) {
	c := Translate("payload", []byte(`{"a":1,"b":2}`))
	if !strings.HasPrefix(c.SQL, "1=1") {
		t.Fatalf("got %q", c.SQL)
	}
	if strings.Count(c.SQL, "AND") != 2 {
		t.Fatalf("want 2 ANDs, got %q", c.SQL)
	}
}
