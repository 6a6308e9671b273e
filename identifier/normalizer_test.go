package identifier

import (
	"errors"
	"testing"
)

func TestNormalize_CoercesHeterogeneousForms(t *testing.T) {
	cases := []struct {
		name  string
		input any
		want  string
	}{
		{"int", 12345, "12345"},
		{"int64", int64(12345), "12345"},
		{"float whole", float64(12345), "12345"},
		{"padded string", "  12345  ", "12345"},
		{"zero padded code kept", "007", "007"},
		{"nil is absent", nil, Absent},
		{"empty string is absent", "   ", Absent},
		{"numeric zero is absent", 0, Absent},
		{"string zero is absent", "0", Absent},
	}
	for _, tc := range cases {
		got, err := Normalize(tc.input)
		if err != nil {
			t.Fatalf("%s: normalize: %v", tc.name, err)
		}
		if got != tc.want {
			t.Fatalf("%s: got %q want %q", tc.name, got, tc.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	for _, input := range []any{12345, "  A-99 ", "007", "0", nil} {
		once, err := Normalize(input)
		if err != nil {
			t.Fatalf("normalize %v: %v", input, err)
		}
		twice, err := Normalize(once)
		if err != nil {
			t.Fatalf("re-normalize %q: %v", once, err)
		}
		if once != twice {
			t.Fatalf("normalize not idempotent: %q vs %q", once, twice)
		}
	}
}

func TestNormalize_RejectsMalformedKinds(t *testing.T) {
	for _, input := range []any{true, []int{1}, map[string]int{}, 1.5} {
		if _, err := Normalize(input); !errors.Is(err, ErrMalformedIdentifier) {
			t.Fatalf("expected malformed identifier error for %T, got %v", input, err)
		}
	}
}

func TestEqual_CrossTypeComparison(t *testing.T) {
	if !Equal(12345, "12345") {
		t.Fatalf("expected numeric and string forms to compare equal")
	}
	if !Equal(" 42 ", int64(42)) {
		t.Fatalf("expected trimmed string to match numeric form")
	}
	if Equal(0, "0") {
		t.Fatalf("absent identifiers must never compare equal")
	}
	if Equal("007", 7) {
		t.Fatalf("padded code is distinct from its numeric collapse")
	}
	if Equal(true, "true") {
		t.Fatalf("malformed identifiers must never compare equal")
	}
}

func TestSQLInClause_EscapesAndSkipsAbsent(t *testing.T) {
	clause, err := SQLInClause([]any{42, "A'B", "", nil, "007"})
	if err != nil {
		t.Fatalf("sql in clause: %v", err)
	}
	if clause != "'42', 'A''B', '007'" {
		t.Fatalf("unexpected clause %q", clause)
	}

	if _, err := SQLInClause([]any{nil, ""}); err == nil {
		t.Fatalf("expected error for clause with no usable identifiers")
	}
}
