package types

import (
	"testing"
	"time"
)

func TestTier_String(t *testing.T) {
	tests := []struct {
		tier     Tier
		expected string
	}{
		{TierRaw, "raw"},
		{TierMinute, "minute"},
		{TierHourly, "hourly"},
	}

	for _, tt := range tests {
		if got := tt.tier.String(); got != tt.expected {
			t.Errorf("Tier(%d).String(): expected %s, got %s", tt.tier, tt.expected, got)
		}
	}
}

func TestTier_WindowSeconds(t *testing.T) {
	if got := TierMinute.WindowSeconds(); got != 60 {
		t.Errorf("minute window: expected 60, got %d", got)
	}
	if got := TierHourly.WindowSeconds(); got != 3600 {
		t.Errorf("hourly window: expected 3600, got %d", got)
	}
	if got := TierRaw.WindowSeconds(); got != 0 {
		t.Errorf("raw window: expected 0, got %d", got)
	}
}

func TestTier_DefaultRetention(t *testing.T) {
	if got := TierRaw.DefaultRetention(); got != 7*24*time.Hour {
		t.Errorf("raw retention: expected 7d, got %v", got)
	}
	if got := TierMinute.DefaultRetention(); got != 90*24*time.Hour {
		t.Errorf("minute retention: expected 90d, got %v", got)
	}
	if got := TierHourly.DefaultRetention(); got != 0 {
		t.Errorf("hourly retention: expected unlimited (0), got %v", got)
	}
}

func TestTier_Prunable(t *testing.T) {
	if !TierRaw.Prunable() || !TierMinute.Prunable() {
		t.Error("raw and minute tiers must be prunable")
	}
	if TierHourly.Prunable() {
		t.Error("hourly tier must never be prunable")
	}
}

func TestTier_TruncateToWindow(t *testing.T) {
	ts := time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

	got := TierMinute.TruncateToWindow(ts)
	if expected := time.Date(2026, 3, 14, 15, 9, 0, 0, time.UTC); !got.Equal(expected) {
		t.Errorf("minute truncate: expected %v, got %v", expected, got)
	}

	got = TierHourly.TruncateToWindow(ts)
	if expected := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC); !got.Equal(expected) {
		t.Errorf("hourly truncate: expected %v, got %v", expected, got)
	}
}

func TestParseTier(t *testing.T) {
	tests := []struct {
		input    string
		expected Tier
		hasError bool
	}{
		{"raw", TierRaw, false},
		{"minute", TierMinute, false},
		{"hourly", TierHourly, false},
		{"daily", TierRaw, true},
		{"", TierRaw, true},
	}

	for _, tt := range tests {
		got, err := ParseTier(tt.input)
		if tt.hasError {
			if err == nil {
				t.Errorf("ParseTier(%q): expected error", tt.input)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseTier(%q): unexpected error: %v", tt.input, err)
			continue
		}
		if got != tt.expected {
			t.Errorf("ParseTier(%q): expected %v, got %v", tt.input, tt.expected, got)
		}
	}
}

func TestCircuits_EncodeDecode(t *testing.T) {
	circuits := map[string]float64{"kitchen": 412.5, "garage": 38}

	blob, err := EncodeCircuits(circuits)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, err := DecodeCircuits(blob)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if len(decoded) != 2 {
		t.Fatalf("expected 2 circuits, got %d", len(decoded))
	}
	if decoded["kitchen"] != 412.5 {
		t.Errorf("kitchen: expected 412.5, got %v", decoded["kitchen"])
	}
	if decoded["garage"] != 38 {
		t.Errorf("garage: expected 38, got %v", decoded["garage"])
	}
}

func TestCircuits_EncodeEmpty(t *testing.T) {
	blob, err := EncodeCircuits(nil)
	if err != nil {
		t.Fatalf("encode nil: %v", err)
	}
	if blob != "" {
		t.Errorf("expected empty blob for nil map, got %q", blob)
	}

	blob, err = EncodeCircuits(map[string]float64{})
	if err != nil {
		t.Fatalf("encode empty: %v", err)
	}
	if blob != "" {
		t.Errorf("expected empty blob for empty map, got %q", blob)
	}
}

func TestCircuits_DecodeMalformed(t *testing.T) {
	tests := []string{
		"{not json",
		"[1,2,3]",
		`{"kitchen":"high"}`,
	}

	for _, blob := range tests {
		circuits, err := DecodeCircuits(blob)
		if err == nil {
			t.Errorf("DecodeCircuits(%q): expected error", blob)
		}
		if circuits != nil {
			t.Errorf("DecodeCircuits(%q): expected nil map on error", blob)
		}
	}
}

func TestCircuits_DecodeEmpty(t *testing.T) {
	circuits, err := DecodeCircuits("")
	if err != nil {
		t.Fatalf("decode empty: %v", err)
	}
	if circuits != nil {
		t.Error("expected nil map for empty blob")
	}

	circuits, err = DecodeCircuits("{}")
	if err != nil {
		t.Fatalf("decode {}: %v", err)
	}
	if circuits != nil {
		t.Error("expected nil map for empty object")
	}
}

func TestCircuitNames_Sorted(t *testing.T) {
	names := CircuitNames(map[string]float64{"garage": 1, "attic": 2, "kitchen": 3})

	expected := []string{"attic", "garage", "kitchen"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d names, got %d", len(expected), len(names))
	}
	for i := range expected {
		if names[i] != expected[i] {
			t.Errorf("names[%d]: expected %s, got %s", i, expected[i], names[i])
		}
	}
}

func TestMinuteAggregate_WindowEnd(t *testing.T) {
	agg := MinuteAggregate{WindowStart: 1_700_000_040}
	if got := agg.WindowEnd(); got != 1_700_000_100 {
		t.Errorf("expected 1700000100, got %d", got)
	}
}

func TestHourlyAggregate_WindowEnd(t *testing.T) {
	agg := HourlyAggregate{WindowStart: 1_699_999_200}
	if got := agg.WindowEnd(); got != 1_700_002_800 {
		t.Errorf("expected 1700002800, got %d", got)
	}
}

func TestRawReading_TimestampTime(t *testing.T) {
	r := RawReading{Timestamp: 1_700_000_000}
	if got := r.TimestampTime().Unix(); got != 1_700_000_000 {
		t.Errorf("expected 1700000000, got %d", got)
	}
}
