package pager

import "testing"

type fakeGate struct {
	loading bool
	hasMore bool
}

func (g *fakeGate) Loading() bool { return g.loading }
func (g *fakeGate) HasMore() bool { return g.hasMore }

func TestPager_FiresOncePerCrossing(t *testing.T) {
	gate := &fakeGate{hasMore: true}
	p := New(gate)

	steps := []struct {
		target       string
		intersecting bool
		want         bool
	}{
		{"10", false, false},
		{"10", true, true},  // crossing
		{"10", true, false}, // still visible
		{"10", true, false},
		{"10", false, false}, // scrolled away
		{"10", true, true},   // crossed again
	}

	for i, s := range steps {
		if got := p.Update(s.target, s.intersecting); got != s.want {
			t.Errorf("step %d: Update(%q, %v) = %v, want %v", i, s.target, s.intersecting, got, s.want)
		}
	}
	if p.Fired() != 2 {
		t.Errorf("Fired() = %d, want 2", p.Fired())
	}
}

func TestPager_RespectsGate(t *testing.T) {
	tests := []struct {
		name    string
		loading bool
		hasMore bool
		want    bool
	}{
		{"ready", false, true, true},
		{"loading", true, true, false},
		{"exhausted", false, false, false},
		{"loading and exhausted", true, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(&fakeGate{loading: tt.loading, hasMore: tt.hasMore})
			if got := p.Update("a", true); got != tt.want {
				t.Errorf("Update() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestPager_BlockedCrossingIsConsumed(t *testing.T) {
	gate := &fakeGate{loading: true, hasMore: true}
	p := New(gate)

	if p.Update("a", true) {
		t.Fatal("fired while loading")
	}

	// Loading finished but the same item is still visible: no new crossing.
	gate.loading = false
	if p.Update("a", true) {
		t.Error("fired without a new crossing")
	}
}

func TestPager_ReattachesOnNewTarget(t *testing.T) {
	gate := &fakeGate{hasMore: true}
	p := New(gate)

	if !p.Update("10", true) {
		t.Fatal("first crossing did not fire")
	}

	// Page appended; the new last item is already on screen.
	gate.loading = true
	if p.Update("10", true) {
		t.Error("fired while loading")
	}
	gate.loading = false
	if !p.Update("20", true) {
		t.Error("new target visible should fire")
	}
	if p.Target() != "20" {
		t.Errorf("Target() = %q, want %q", p.Target(), "20")
	}
	if p.Update("20", true) {
		t.Error("same target should not fire twice")
	}
}

func TestPager_ObserveSameTargetKeepsState(t *testing.T) {
	p := New(&fakeGate{hasMore: true})

	p.Update("a", true)
	p.Observe("a")
	if p.Update("a", true) {
		t.Error("re-observing the same target should not reset the crossing")
	}
}

func TestPager_EmptyTargetNeverFires(t *testing.T) {
	p := New(&fakeGate{hasMore: true})

	if p.Update("", true) {
		t.Error("empty target fired")
	}
}

func TestPager_Reset(t *testing.T) {
	p := New(&fakeGate{hasMore: true})

	p.Update("a", true)
	p.Reset()
	if p.Target() != "" {
		t.Errorf("Target() = %q after Reset", p.Target())
	}
	if !p.Update("a", true) {
		t.Error("after Reset the same target should fire again")
	}
}

func TestVisible(t *testing.T) {
	tests := []struct {
		index, offset, height int
		want                  bool
	}{
		{0, 0, 10, true},
		{9, 0, 10, true},
		{10, 0, 10, false},
		{4, 5, 10, false},
		{14, 5, 10, true},
		{-1, 0, 10, false},
		{0, 0, 0, false},
	}

	for _, tt := range tests {
		if got := Visible(tt.index, tt.offset, tt.height); got != tt.want {
			t.Errorf("Visible(%d, %d, %d) = %v, want %v", tt.index, tt.offset, tt.height, got, tt.want)
		}
	}
}
