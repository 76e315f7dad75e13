package entity

import (
	"testing"
	"unicode/utf8"
)

func TestParseStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Status
	}{
		{raw: "BOOKED", want: StatusBooked},
		{raw: "CANCELED", want: StatusCanceled},
		{raw: "booked", want: StatusUnknown},
		{raw: "CANCELLED", want: StatusUnknown},
		{raw: "", want: StatusUnknown},
	}

	for _, tc := range tests {
		if got := ParseStatus(tc.raw); got != tc.want {
			t.Fatalf("ParseStatus(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNormalizeDateIdempotent(t *testing.T) {
	t.Parallel()

	inputs := []string{"2024-05-01T00:00:00", "2024-05-01", "2024-05", ""}
	for _, in := range inputs {
		once := NormalizeDate(in)
		if twice := NormalizeDate(once); twice != once {
			t.Fatalf("NormalizeDate not idempotent for %q: %q then %q", in, once, twice)
		}
	}

	if got := NormalizeDate("2024-05-01T00:00:00"); got != "2024-05-01" {
		t.Fatalf("expected 2024-05-01, got %q", got)
	}
}

func TestNormalizeDateCountsCharacters(t *testing.T) {
	t.Parallel()

	got := NormalizeDate("２０２４-05-01T09:00")
	if got != "２０２４-05-01" {
		t.Fatalf("expected ２０２４-05-01, got %q", got)
	}
	if !utf8.ValidString(got) {
		t.Fatalf("NormalizeDate produced invalid UTF-8: %q", got)
	}
}
