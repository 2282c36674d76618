package domain

import "testing"

// TestStatusIsProcessing verifies the derived processing query per phase.
func TestStatusIsProcessing(t *testing.T) {
	cases := []struct {
		status Status
		want   bool
	}{
		{Idle(), false},
		{Transcribing(0.2), true},
		{TranscribingPaused(0.2), true},
		{Summarizing(0.7), true},
		{SummarizingPaused(0.7), true},
		{Done(), false},
		{Failed("boom"), false},
	}

	for _, tc := range cases {
		if got := tc.status.IsProcessing(); got != tc.want {
			t.Fatalf("IsProcessing(%s) = %v, want %v", tc.status.Phase, got, tc.want)
		}
	}
}

// TestStatusIsPaused verifies only paused phases report paused.
func TestStatusIsPaused(t *testing.T) {
	if !TranscribingPaused(0.5).IsPaused() {
		t.Fatal("transcribingPaused should be paused")
	}
	if !SummarizingPaused(0.5).IsPaused() {
		t.Fatal("summarizingPaused should be paused")
	}
	if Transcribing(0.5).IsPaused() {
		t.Fatal("transcribing should not be paused")
	}
	if Idle().IsPaused() {
		t.Fatal("idle should not be paused")
	}
}

// TestStatusProgressValue verifies progress extraction per phase.
func TestStatusProgressValue(t *testing.T) {
	if p, ok := Transcribing(0.3).ProgressValue(); !ok || p != 0.3 {
		t.Fatalf("progress = %v, %v, want 0.3, true", p, ok)
	}
	if _, ok := Done().ProgressValue(); ok {
		t.Fatal("done should carry no progress")
	}
	if _, ok := Failed("x").ProgressValue(); ok {
		t.Fatal("failed should carry no progress")
	}
}

// TestStatusProgressClamped verifies progress payloads stay in [0,1].
func TestStatusProgressClamped(t *testing.T) {
	if p, _ := Transcribing(-0.5).ProgressValue(); p != 0 {
		t.Fatalf("progress = %v, want 0", p)
	}
	if p, _ := Summarizing(1.5).ProgressValue(); p != 1 {
		t.Fatalf("progress = %v, want 1", p)
	}
}

// TestFailedCarriesReason verifies failure reason payload.
func TestFailedCarriesReason(t *testing.T) {
	s := Failed("audio file is empty")
	if s.Phase != PhaseFailed {
		t.Fatalf("phase = %s, want failed", s.Phase)
	}
	if s.Reason != "audio file is empty" {
		t.Fatalf("reason = %q", s.Reason)
	}
}
