package page

import "testing"

type fakeNotifiee struct {
	uncoupled    bool
	shiftedIndex int
	shiftCalled  bool
}

func (f *fakeNotifiee) Uncouple()             { f.uncoupled = true }
func (f *fakeNotifiee) ShiftIndex(removed int) { f.shiftCalled = true; f.shiftedIndex = removed }

func TestPinUnpinTracksCount(t *testing.T) {
	p := New(0, TypeLeaf, 16)
	if p.Pinned() {
		t.Fatal("expected fresh page to be unpinned")
	}
	p.Pin()
	p.Pin()
	if p.PinCount() != 2 {
		t.Fatalf("expected pin count 2, got %d", p.PinCount())
	}
	p.Unpin()
	if !p.Pinned() {
		t.Fatal("expected page to still be pinned after one unpin")
	}
	p.Unpin()
	if p.Pinned() {
		t.Fatal("expected page to be unpinned after balancing pins")
	}
	p.Unpin() // must not go negative
	if p.PinCount() != 0 {
		t.Fatalf("expected pin count to floor at 0, got %d", p.PinCount())
	}
}

func TestMutatePayloadMarksDirty(t *testing.T) {
	p := New(0, TypeLeaf, 16)
	if p.Dirty() {
		t.Fatal("expected fresh page to be clean")
	}
	p.MutatePayload(func(buf []byte) { buf[0] = 0xFF })
	if !p.Dirty() {
		t.Fatal("expected page to be dirty after MutatePayload")
	}
	p.ClearDirty()
	if p.Dirty() {
		t.Fatal("expected page to be clean after ClearDirty")
	}
}

func TestNotifyAllUncouplesEveryoneButSkip(t *testing.T) {
	p := New(0, TypeLeaf, 16)
	a, b := &fakeNotifiee{}, &fakeNotifiee{}
	p.Attach(a)
	p.Attach(b)

	p.NotifyAll(a)

	if a.uncoupled {
		t.Fatal("expected the skipped notifiee to not be uncoupled")
	}
	if !b.uncoupled {
		t.Fatal("expected the other notifiee to be uncoupled")
	}
	if p.NotifieeCount() != 1 {
		t.Fatalf("expected the skipped notifiee to remain attached, count=%d", p.NotifieeCount())
	}
}

func TestNotifyEraseShiftsEveryoneButSkip(t *testing.T) {
	p := New(0, TypeLeaf, 16)
	a, b := &fakeNotifiee{}, &fakeNotifiee{}
	p.Attach(a)
	p.Attach(b)

	p.NotifyErase(a, 3)

	if a.shiftCalled {
		t.Fatal("expected the skipped notifiee to not receive ShiftIndex")
	}
	if !b.shiftCalled || b.shiftedIndex != 3 {
		t.Fatalf("expected the other notifiee to be shifted at index 3, got called=%v index=%d", b.shiftCalled, b.shiftedIndex)
	}
	if p.NotifieeCount() != 2 {
		t.Fatalf("expected NotifyErase to leave the attach list intact, count=%d", p.NotifieeCount())
	}
}

func TestDetachRemovesNotifiee(t *testing.T) {
	p := New(0, TypeLeaf, 16)
	a := &fakeNotifiee{}
	p.Attach(a)
	if p.NotifieeCount() != 1 {
		t.Fatal("expected one attached notifiee")
	}
	p.Detach(a)
	if p.NotifieeCount() != 0 {
		t.Fatal("expected no attached notifiees after Detach")
	}
}
