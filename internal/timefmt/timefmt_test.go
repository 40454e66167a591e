package timefmt

import (
	"testing"
	"time"
)

func TestNormalize_ParsedTimeWins(t *testing.T) {
	parsed := time.Date(2025, 6, 13, 20, 16, 24, 0, time.UTC)

	got := Normalize(&parsed, "garbage that should be ignored")
	want := "Fri, 13 Jun 2025 20:16:24 +0000"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestNormalize_ParsedTimeConvertedToUTC(t *testing.T) {
	loc := time.FixedZone("EDT", -4*3600)
	parsed := time.Date(2025, 6, 13, 16, 16, 24, 0, loc)

	got := Normalize(&parsed, "")
	want := "Fri, 13 Jun 2025 20:16:24 +0000"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestNormalizeString_GMTSuffix(t *testing.T) {
	got := NormalizeString("Fri, 13 Jun 2025 20:16:24 GMT")
	want := "Fri, 13 Jun 2025 20:16:24 +0000"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestNormalizeString_UTCSuffix(t *testing.T) {
	got := NormalizeString("Fri, 13 Jun 2025 20:16:24 UTC")
	want := "Fri, 13 Jun 2025 20:16:24 +0000"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestNormalizeString_NumericOffsetPreserved(t *testing.T) {
	in := "Fri, 13 Jun 2025 20:16:24 +0800"
	if got := NormalizeString(in); got != in {
		t.Errorf("Expected offset preserved verbatim, got %q", got)
	}
}

func TestNormalizeString_MissingOffsetAppended(t *testing.T) {
	got := NormalizeString("Fri, 13 Jun 2025 20:16:24")
	want := "Fri, 13 Jun 2025 20:16:24 +0000"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestNormalizeString_CanonicalRoundTrip(t *testing.T) {
	in := "Fri, 13 Jun 2025 20:16:24 +0000"
	if got := NormalizeString(in); got != in {
		t.Errorf("Expected round-trip, got %q", got)
	}
}

func TestNormalizeString_ISOWithOffset(t *testing.T) {
	got := NormalizeString("2025-06-13T20:16:24-04:00")
	want := "Fri, 13 Jun 2025 20:16:24 +0000"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestNormalizeString_ISOZulu(t *testing.T) {
	got := NormalizeString("2025-06-13T20:16:24Z")
	want := "Fri, 13 Jun 2025 20:16:24 +0000"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestNormalizeString_ISOPositiveOffset(t *testing.T) {
	got := NormalizeString("2025-06-13T20:16:24+08:00")
	want := "Fri, 13 Jun 2025 20:16:24 +0000"
	if got != want {
		t.Errorf("Expected %q, got %q", want, got)
	}
}

func TestNormalizeString_Unparseable(t *testing.T) {
	if got := NormalizeString("not-a-date"); got != "" {
		t.Errorf("Expected empty string for unparseable input, got %q", got)
	}
}

func TestNormalizeString_Empty(t *testing.T) {
	if got := NormalizeString(""); got != "" {
		t.Errorf("Expected empty string, got %q", got)
	}
}

func TestParse_Canonical(t *testing.T) {
	got, ok := Parse("Fri, 13 Jun 2025 20:16:24 +0000")
	if !ok {
		t.Fatal("Expected canonical timestamp to parse")
	}
	want := time.Date(2025, 6, 13, 20, 16, 24, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParse_NamedZone(t *testing.T) {
	got, ok := Parse("Fri, 13 Jun 2025 20:16:24 GMT")
	if !ok {
		t.Fatal("Expected GMT timestamp to parse")
	}
	want := time.Date(2025, 6, 13, 20, 16, 24, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
}

func TestParse_Garbage(t *testing.T) {
	if _, ok := Parse("yesterday-ish"); ok {
		t.Error("Expected garbage input to fail parsing")
	}
}
