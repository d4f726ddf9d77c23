package reaction

import (
	"testing"
	"time"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestManualClock_AdvanceRunsDueTimersInOrder(t *testing.T) {
	clock := NewManualClock(epoch)
	var got []string
	clock.AfterFunc(300*time.Millisecond, func() { got = append(got, "c") })
	clock.AfterFunc(100*time.Millisecond, func() { got = append(got, "a") })
	clock.AfterFunc(100*time.Millisecond, func() { got = append(got, "b") })

	clock.Advance(200 * time.Millisecond)
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Fatalf("Expected [a b] after 200ms, got %v", got)
	}
	if !clock.Now().Equal(epoch.Add(200 * time.Millisecond)) {
		t.Errorf("Expected now at 200ms, got %v", clock.Now().Sub(epoch))
	}

	clock.Advance(time.Second)
	if len(got) != 3 || got[2] != "c" {
		t.Errorf("Expected c to fire last, got %v", got)
	}
}

func TestManualClock_TimerSeesItsDeadline(t *testing.T) {
	clock := NewManualClock(epoch)
	var at time.Time
	clock.AfterFunc(250*time.Millisecond, func() { at = clock.Now() })
	clock.Advance(time.Second)
	if !at.Equal(epoch.Add(250 * time.Millisecond)) {
		t.Errorf("Expected callback at 250ms, got %v", at.Sub(epoch))
	}
}

func TestManualClock_NestedTimers(t *testing.T) {
	clock := NewManualClock(epoch)
	fired := 0
	clock.AfterFunc(100*time.Millisecond, func() {
		fired++
		clock.AfterFunc(100*time.Millisecond, func() { fired++ })
	})
	clock.Advance(200 * time.Millisecond)
	if fired != 2 {
		t.Errorf("Expected timer scheduled during Advance to fire, got %d", fired)
	}
	if clock.Pending() != 0 {
		t.Errorf("Expected no pending timers, got %d", clock.Pending())
	}
}

func TestManualClock_Stop(t *testing.T) {
	clock := NewManualClock(epoch)
	fired := false
	timer := clock.AfterFunc(time.Second, func() { fired = true })
	if clock.Pending() != 1 {
		t.Errorf("Expected 1 pending timer, got %d", clock.Pending())
	}
	if !timer.Stop() {
		t.Error("Expected Stop to report a cancelled timer")
	}
	if timer.Stop() {
		t.Error("Expected second Stop to return false")
	}
	clock.Advance(2 * time.Second)
	if fired {
		t.Error("Expected stopped timer not to fire")
	}
}

func TestManualClock_AdvanceToPastIsNoOp(t *testing.T) {
	clock := NewManualClock(epoch)
	clock.Advance(time.Second)
	clock.AdvanceTo(epoch)
	if !clock.Now().Equal(epoch.Add(time.Second)) {
		t.Errorf("Expected clock not to move backwards, got %v", clock.Now().Sub(epoch))
	}
}
