package rollup

import (
	"testing"
	"time"
)

func TestFloorWindow(t *testing.T) {
	tests := []struct {
		name   string
		ts     int64
		window time.Duration
		want   int64
	}{
		{"minute mid-window", windowT + 37, time.Minute, windowT},
		{"minute on boundary", windowT, time.Minute, windowT},
		{"minute last second", windowT + 59, time.Minute, windowT},
		{"hour mid-window", hourT + 1800, time.Hour, hourT},
		{"hour on boundary", hourT, time.Hour, hourT},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := floorWindow(tt.ts, tt.window); got != tt.want {
				t.Errorf("floorWindow(%d, %v) = %d, want %d", tt.ts, tt.window, got, tt.want)
			}
		})
	}
}

func TestPreviousWindowStart(t *testing.T) {
	tests := []struct {
		name   string
		now    time.Time
		window time.Duration
		want   int64
	}{
		{"mid-window targets prior window", time.Unix(windowT+30, 0), time.Minute, windowT - 60},
		{"on boundary targets just-closed window", time.Unix(windowT, 0), time.Minute, windowT - 60},
		{"hourly", time.Unix(hourT+10, 0), time.Hour, hourT - 3600},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := previousWindowStart(tt.now, tt.window); got != tt.want {
				t.Errorf("previousWindowStart(%v, %v) = %d, want %d", tt.now.Unix(), tt.window, got, tt.want)
			}
		})
	}
}

func TestRounding(t *testing.T) {
	if got := round2(150.12499); got != 150.12 {
		t.Errorf("round2: got %v", got)
	}
	if got := round2(150.125); got != 150.13 {
		t.Errorf("round2 half up: got %v", got)
	}
	if got := round3(1.2344); got != 1.234 {
		t.Errorf("round3: got %v", got)
	}
	if got := round3(1.0625); got != 1.063 {
		t.Errorf("round3 half up: got %v", got)
	}
}
