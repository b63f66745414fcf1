package state

import (
	"testing"

	"github.com/robdobsn/raftgo/pkg/schema"
)

func TestAttributeCreatedFromSchema(t *testing.T) {
	dev := newDeviceState("0_10", "0", "10")
	attrSchema := &schema.AttributeSchema{
		Name: "temp", Type: "h",
		Units: "C", Range: []float64{-40, 85}, Format: "%.1f",
	}

	a, created := dev.Attribute(attrSchema)
	if !created {
		t.Fatal("first sight should create")
	}
	if a.Name != "temp" || a.Units != "C" || a.Format != "%.1f" {
		t.Errorf("attr = %+v", a)
	}
	if !a.NewAttribute {
		t.Error("new attribute flag should be set")
	}
	if !a.VisibleSeries || !a.VisibleForm {
		t.Error("visibility defaults to true")
	}

	again, created := dev.Attribute(attrSchema)
	if created || again != a {
		t.Error("second sight must reuse the state")
	}
}

func TestAttributeVisibilityFlags(t *testing.T) {
	dev := newDeviceState("0_10", "0", "10")
	no := false
	a, _ := dev.Attribute(&schema.AttributeSchema{
		Name: "raw", Type: "H", VisibleSeries: &no,
	})
	if a.VisibleSeries {
		t.Error("explicit false should stick")
	}
	if !a.VisibleForm {
		t.Error("unset flag defaults to true")
	}
}

func TestLatestAndDisplay(t *testing.T) {
	a := &AttributeState{Name: "temp", Format: "%.1f"}

	if _, ok := a.Latest(); ok {
		t.Error("empty history has no latest")
	}
	if got := a.Display(); got != "N/A" {
		t.Errorf("Display = %q, want N/A", got)
	}

	a.Values = []float64{1, 2.25}
	if v, ok := a.Latest(); !ok || v != 2.25 {
		t.Errorf("Latest = %v, %v", v, ok)
	}
	if got := a.Display(); got != "2.2" {
		t.Errorf("Display = %q, want 2.2", got)
	}
}

func TestTimelineLockStepTrim(t *testing.T) {
	dev := newDeviceState("0_10", "0", "10")
	a, _ := dev.Attribute(&schema.AttributeSchema{Name: "v", Type: "B"})

	for i := 0; i < 8; i++ {
		dev.AppendTimeline(int64(i*100), 5)
		dev.AppendValue(a, float64(i), 5)
	}

	if len(dev.Timeline) != 5 {
		t.Fatalf("timeline length = %d, want 5", len(dev.Timeline))
	}
	if len(a.Values) != 5 {
		t.Fatalf("values length = %d, want 5", len(a.Values))
	}
	// Oldest evicted first; timeline and values stay aligned.
	if dev.Timeline[0] != 300 || a.Values[0] != 3 {
		t.Errorf("head = (%d, %v), want (300, 3)", dev.Timeline[0], a.Values[0])
	}
	if dev.Timeline[4] != 700 || a.Values[4] != 7 {
		t.Errorf("tail = (%d, %v), want (700, 7)", dev.Timeline[4], a.Values[4])
	}
}

func TestAppendValueSetsNewData(t *testing.T) {
	dev := newDeviceState("0_10", "0", "10")
	a, _ := dev.Attribute(&schema.AttributeSchema{Name: "v", Type: "B"})
	a.NewData = false

	dev.AppendValue(a, 1, 10)
	if !a.NewData {
		t.Error("append should mark new data")
	}
}

func TestOnlineStateString(t *testing.T) {
	tests := []struct {
		state OnlineState
		want  string
	}{
		{OnlineStateUnknown, "unknown"},
		{OnlineStateOnline, "online"},
		{OnlineStateOffline, "offline"},
		{OnlineStatePendingDeletion, "pending-deletion"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("%d.String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}
