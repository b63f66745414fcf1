package state

import "testing"

func TestStoreEnsureIdempotent(t *testing.T) {
	s := NewStore()

	dev, created := s.Ensure("0_10", "0", "10")
	if !created || dev == nil {
		t.Fatal("first Ensure should create")
	}
	if !dev.IsNew {
		t.Error("new device should be marked new")
	}

	again, created := s.Ensure("0_10", "0", "10")
	if created {
		t.Error("second Ensure must not create")
	}
	if again != dev {
		t.Error("Ensure should return the same state")
	}
	if s.Count() != 1 {
		t.Errorf("Count = %d, want 1", s.Count())
	}
}

func TestStoreGetRemove(t *testing.T) {
	s := NewStore()
	s.Ensure("0_10", "0", "10")

	if _, err := s.Get("0_10"); err != nil {
		t.Errorf("Get: %v", err)
	}
	if _, err := s.Get("1_20"); err != ErrDeviceNotFound {
		t.Errorf("Get unknown = %v, want ErrDeviceNotFound", err)
	}

	if removed := s.Remove("0_10"); removed == nil {
		t.Error("Remove should return the removed state")
	}
	if removed := s.Remove("0_10"); removed != nil {
		t.Error("double Remove should return nil")
	}
	if s.Count() != 0 {
		t.Errorf("Count = %d, want 0", s.Count())
	}
}

func TestStoreKeysDevices(t *testing.T) {
	s := NewStore()
	s.Ensure("0_10", "0", "10")
	s.Ensure("1_20", "1", "20")

	if len(s.Keys()) != 2 {
		t.Errorf("Keys = %v, want 2 entries", s.Keys())
	}
	if len(s.Devices()) != 2 {
		t.Errorf("Devices length = %d, want 2", len(s.Devices()))
	}
}

func TestStoreStale(t *testing.T) {
	s := NewStore()
	fresh, _ := s.Ensure("0_10", "0", "10")
	fresh.LastUpdateMs = 9500
	old, _ := s.Ensure("0_11", "0", "11")
	old.LastUpdateMs = 1000
	s.Ensure("0_12", "0", "12") // never updated

	stale := s.Stale(10000, 5000)
	if len(stale) != 1 || stale[0] != "0_11" {
		t.Errorf("Stale = %v, want [0_11]", stale)
	}
}
