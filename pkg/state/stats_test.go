package state

import "testing"

func TestStatsSlidingWindow(t *testing.T) {
	s := NewStats(500)
	s.Update("0_10", 10, 0)
	s.Update("0_10", 10, 400)

	snap := s.Get("0_10", 400)
	if snap.TotalSamples != 20 {
		t.Errorf("TotalSamples = %d, want 20", snap.TotalSamples)
	}
	if snap.WindowSamples != 20 {
		t.Errorf("WindowSamples = %d, want 20", snap.WindowSamples)
	}
	// 20 samples over 400ms → 50 Hz.
	if snap.RatePerSec != 50 {
		t.Errorf("RatePerSec = %v, want 50", snap.RatePerSec)
	}
	if snap.LastSampleMs != 400 {
		t.Errorf("LastSampleMs = %d, want 400", snap.LastSampleMs)
	}
}

func TestStatsWindowExpiry(t *testing.T) {
	s := NewStats(500)
	s.Update("0_10", 10, 0)
	s.Update("0_10", 10, 400)

	// At t=600 the first batch has slid out of the window.
	snap := s.Get("0_10", 600)
	if snap.WindowSamples != 10 {
		t.Errorf("WindowSamples = %d, want 10", snap.WindowSamples)
	}
	if snap.TotalSamples != 20 {
		t.Errorf("TotalSamples = %d, want 20 (lifetime count is not windowed)", snap.TotalSamples)
	}

	// Far beyond the window the rate decays to zero.
	snap = s.Get("0_10", 5000)
	if snap.WindowSamples != 0 || snap.RatePerSec != 0 {
		t.Errorf("expired window = %+v, want zero rate", snap)
	}
	if snap.TotalSamples != 20 {
		t.Errorf("TotalSamples = %d, want 20", snap.TotalSamples)
	}
}

func TestStatsSingleBatchRate(t *testing.T) {
	s := NewStats(1000)
	s.Update("0_10", 5, 100)

	// One batch: elapsed is clamped to 1ms to avoid dividing by zero.
	snap := s.Get("0_10", 100)
	if snap.WindowSamples != 5 {
		t.Errorf("WindowSamples = %d, want 5", snap.WindowSamples)
	}
	if snap.RatePerSec != 5000 {
		t.Errorf("RatePerSec = %v, want 5000", snap.RatePerSec)
	}
}

func TestStatsUnknownDevice(t *testing.T) {
	s := NewStats(500)
	snap := s.Get("nope", 100)
	if snap.TotalSamples != 0 || snap.WindowSamples != 0 || snap.RatePerSec != 0 {
		t.Errorf("unknown device = %+v, want zeros", snap)
	}
	if snap.WindowMs != 500 {
		t.Errorf("WindowMs = %d, want 500", snap.WindowMs)
	}
}

func TestStatsIgnoresEmptyBatch(t *testing.T) {
	s := NewStats(500)
	s.Update("0_10", 0, 100)
	s.Update("0_10", -3, 100)
	if snap := s.Get("0_10", 100); snap.TotalSamples != 0 {
		t.Errorf("TotalSamples = %d, want 0", snap.TotalSamples)
	}
}

func TestStatsResetRemove(t *testing.T) {
	s := NewStats(500)
	s.Update("0_10", 10, 0)

	s.Reset("0_10")
	if snap := s.Get("0_10", 0); snap.TotalSamples != 0 {
		t.Error("Reset should clear all counters")
	}

	s.Update("0_10", 10, 0)
	s.Remove("0_10")
	if snap := s.Get("0_10", 0); snap.TotalSamples != 0 {
		t.Error("Remove should clear all counters")
	}
}
