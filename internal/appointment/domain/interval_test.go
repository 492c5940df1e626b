package domain

import "testing"

func TestParseStartMinute(t *testing.T) {
	cases := []struct {
		in      string
		want    int
		wantErr bool
	}{
		{"09:00", 540, false},
		{"00:00", 0, false},
		{"23:59", 1439, false},
		{" 10:30 ", 630, false},
		{"24:00", 0, true},
		{"9", 0, true},
		{"09:60", 0, true},
		{"", 0, true},
	}
	for _, tc := range cases {
		got, err := ParseStartMinute(tc.in)
		if tc.wantErr {
			if err == nil {
				t.Errorf("ParseStartMinute(%q): expected error", tc.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseStartMinute(%q): %v", tc.in, err)
			continue
		}
		if got != tc.want {
			t.Errorf("ParseStartMinute(%q): got %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestValidateInterval(t *testing.T) {
	if err := ValidateInterval(540, 30); err != nil {
		t.Errorf("9:00+30m should be valid: %v", err)
	}
	if err := ValidateInterval(23*60, 60); err != nil {
		t.Errorf("23:00+60m ends exactly at midnight, should be valid: %v", err)
	}
	if err := ValidateInterval(23*60+30, 45); err != ErrInvalidDuration {
		t.Errorf("interval past midnight: got %v, want ErrInvalidDuration", err)
	}
	if err := ValidateInterval(540, 0); err != ErrInvalidDuration {
		t.Errorf("zero duration: got %v, want ErrInvalidDuration", err)
	}
	if err := ValidateInterval(540, -15); err != ErrInvalidDuration {
		t.Errorf("negative duration: got %v, want ErrInvalidDuration", err)
	}
}

func TestOverlaps(t *testing.T) {
	// 10:00-10:30 vs 10:15-10:45 overlap.
	if !Overlaps(600, 30, 615, 30) {
		t.Error("expected overlap for intersecting intervals")
	}
	// Touching intervals do not overlap: 10:00-10:30 then 10:30-11:00.
	if Overlaps(600, 30, 630, 30) {
		t.Error("touching intervals must not overlap")
	}
	if Overlaps(630, 30, 600, 30) {
		t.Error("touching intervals must not overlap (reversed order)")
	}
	// Containment overlaps.
	if !Overlaps(600, 120, 630, 30) {
		t.Error("contained interval must overlap")
	}
	// Disjoint.
	if Overlaps(600, 30, 720, 30) {
		t.Error("disjoint intervals must not overlap")
	}
	// Identical.
	if !Overlaps(600, 30, 600, 30) {
		t.Error("identical intervals must overlap")
	}
}

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to Status }{
		{StatusScheduled, StatusConfirmed},
		{StatusScheduled, StatusCancelled},
		{StatusScheduled, StatusNoShow},
		{StatusScheduled, StatusCompleted},
		{StatusConfirmed, StatusInProgress},
		{StatusConfirmed, StatusCompleted},
		{StatusInProgress, StatusCompleted},
		{StatusInProgress, StatusCancelled},
	}
	for _, tc := range allowed {
		if !CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be allowed", tc.from, tc.to)
		}
	}

	denied := []struct{ from, to Status }{
		{StatusScheduled, StatusInProgress},
		{StatusCancelled, StatusCancelled},
		{StatusCancelled, StatusScheduled},
		{StatusCompleted, StatusCancelled},
		{StatusCompleted, StatusCompleted},
		{StatusNoShow, StatusConfirmed},
	}
	for _, tc := range denied {
		if CanTransition(tc.from, tc.to) {
			t.Errorf("%s -> %s should be denied", tc.from, tc.to)
		}
	}
}
