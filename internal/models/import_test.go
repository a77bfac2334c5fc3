package models

import (
	"testing"
	"time"
)

func TestFilenameForHour(t *testing.T) {
	cases := []struct {
		hour time.Time
		want string
	}{
		{time.Date(2024, 1, 1, 5, 0, 0, 0, time.UTC), "2024-01-01-5.json.gz"},
		{time.Date(2024, 12, 31, 23, 0, 0, 0, time.UTC), "2024-12-31-23.json.gz"},
		{time.Date(2024, 6, 9, 0, 0, 0, 0, time.UTC), "2024-06-09-0.json.gz"},
	}
	for _, tc := range cases {
		if got := FilenameForHour(tc.hour); got != tc.want {
			t.Fatalf("FilenameForHour(%v)=%q want %q", tc.hour, got, tc.want)
		}
	}
}

func TestFilenameForHour_ConvertsToUTC(t *testing.T) {
	loc := time.FixedZone("plus2", 2*60*60)
	local := time.Date(2024, 1, 1, 1, 0, 0, 0, loc) // 23:00 UTC the day before
	if got := FilenameForHour(local); got != "2023-12-31-23.json.gz" {
		t.Fatalf("got=%q", got)
	}
}

func TestHourForFilenameRoundTrip(t *testing.T) {
	hour := time.Date(2024, 3, 7, 14, 0, 0, 0, time.UTC)
	got, err := HourForFilename(FilenameForHour(hour))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !got.Equal(hour) {
		t.Fatalf("got=%v want %v", got, hour)
	}
}

func TestHourForFilename_Invalid(t *testing.T) {
	if _, err := HourForFilename("not-a-filename"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestPackagePurl(t *testing.T) {
	pkg := &Package{Ecosystem: "rubygems", Name: "rack"}
	if got := pkg.Purl(); got != "pkg:gem/rack" {
		t.Fatalf("purl=%q", got)
	}
	unknown := &Package{Ecosystem: "mystery", Name: "x"}
	if got := unknown.Purl(); got != "" {
		t.Fatalf("purl=%q want empty", got)
	}
}

func TestEcosystemForPurlType(t *testing.T) {
	if got := EcosystemForPurlType("gem"); got != "rubygems" {
		t.Fatalf("got=%q", got)
	}
	if got := EcosystemForPurlType("npm"); got != "npm" {
		t.Fatalf("got=%q", got)
	}
}
