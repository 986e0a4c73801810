package services

import (
	"testing"
	"time"

	"networth/internal/core"
)

func TestCadence(t *testing.T) {
	anchor := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		rule core.RecurrenceRule
		want time.Time
	}{
		{
			name: "daily",
			rule: core.RecurrenceRule{Type: core.Daily},
			want: time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "weekly",
			rule: core.RecurrenceRule{Type: core.Weekly},
			want: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly",
			rule: core.RecurrenceRule{Type: core.Monthly},
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "monthly ignores interval and unit",
			rule: core.RecurrenceRule{Type: core.Monthly, Interval: 5, Unit: core.Years},
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "custom 3 days",
			rule: core.RecurrenceRule{Type: core.Custom, Interval: 3, Unit: core.Days},
			want: time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "custom 2 weeks",
			rule: core.RecurrenceRule{Type: core.Custom, Interval: 2, Unit: core.Weeks},
			want: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "custom 6 months",
			rule: core.RecurrenceRule{Type: core.Custom, Interval: 6, Unit: core.Months},
			want: time.Date(2024, 7, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "custom 1 year",
			rule: core.RecurrenceRule{Type: core.Custom, Interval: 1, Unit: core.Years},
			want: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name: "custom without unit is a no-op",
			rule: core.RecurrenceRule{Type: core.Custom, Interval: 2},
			want: anchor,
		},
		{
			name: "no type is a no-op",
			rule: core.RecurrenceRule{},
			want: anchor,
		},
		{
			name: "unknown type is a no-op",
			rule: core.RecurrenceRule{Type: "HOURLY"},
			want: anchor,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Cadence(anchor, tt.rule)
			if !got.Equal(tt.want) {
				t.Errorf("Cadence() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCadence_MonthlyIndependentOfZone(t *testing.T) {
	rome, err := time.LoadLocation("Europe/Rome")
	if err != nil {
		t.Skipf("tzdata not available: %v", err)
	}
	// 2024-03-31 00:30 in Rome is 2024-03-30 23:30 UTC
	anchor := time.Date(2024, 3, 31, 0, 30, 0, 0, rome)
	want := time.Date(2024, 4, 30, 23, 30, 0, 0, time.UTC)

	if got := Cadence(anchor, core.RecurrenceRule{Type: core.Monthly}); !got.Equal(want) {
		t.Errorf("Cadence() = %v, want %v", got, want)
	}
	if got := Cadence(anchor.UTC(), core.RecurrenceRule{Type: core.Monthly}); !got.Equal(want) {
		t.Errorf("Cadence(UTC) = %v, want %v", got, want)
	}
}

func TestCadence_MonthOverflow(t *testing.T) {
	anchor := time.Date(2023, 1, 31, 0, 0, 0, 0, time.UTC)
	want := time.Date(2023, 3, 3, 0, 0, 0, 0, time.UTC)
	if got := Cadence(anchor, core.RecurrenceRule{Type: core.Monthly}); !got.Equal(want) {
		t.Errorf("Cadence() = %v, want %v", got, want)
	}
}

func TestGetCadenceStrategy(t *testing.T) {
	for _, rt := range []core.RecurrenceType{core.Daily, core.Weekly, core.Monthly, core.Custom} {
		if _, err := GetCadenceStrategy(rt); err != nil {
			t.Errorf("GetCadenceStrategy(%s) error = %v", rt, err)
		}
	}
	if _, err := GetCadenceStrategy("FORTNIGHTLY"); err == nil {
		t.Error("GetCadenceStrategy(FORTNIGHTLY) expected error")
	}
}
