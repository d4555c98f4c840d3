package metrics

import (
	"sync"
	"testing"
	"time"
)

func TestInMemoryRecorder_Joins(t *testing.T) {
	t.Parallel()

	m := NewInMemory()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.IncJoin(JoinJoined)
			m.IncJoin(JoinFull)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.Joins[JoinJoined] != 50 {
		t.Errorf("joined = %d, want 50", snap.Joins[JoinJoined])
	}
	if snap.Joins[JoinFull] != 50 {
		t.Errorf("full = %d, want 50", snap.Joins[JoinFull])
	}
}

func TestInMemoryRecorder_SnapshotIsCopy(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.IncJoin(JoinJoined)

	snap := m.Snapshot()
	snap.Joins[JoinJoined] = 99

	if got := m.Snapshot().Joins[JoinJoined]; got != 1 {
		t.Errorf("snapshot mutation leaked into recorder: got %d", got)
	}
}

func TestInMemoryRecorder_Counters(t *testing.T) {
	t.Parallel()

	m := NewInMemory()
	m.ObserveJoinDuration(2 * time.Millisecond)
	m.ObserveJoinDuration(3 * time.Millisecond)
	m.SetCounterDrift(4)
	m.SetCounterDrift(1)
	m.IncActivityPublished("success")
	m.IncActivityPublished("dropped")
	m.IncActivityPublished("dropped")

	snap := m.Snapshot()
	if snap.JoinDurationCount != 2 {
		t.Errorf("JoinDurationCount = %d, want 2", snap.JoinDurationCount)
	}
	if snap.JoinDurationTotalNs != int64(5*time.Millisecond) {
		t.Errorf("JoinDurationTotalNs = %d", snap.JoinDurationTotalNs)
	}
	if snap.CounterDriftEvents != 1 {
		t.Errorf("CounterDriftEvents = %d, want latest value 1", snap.CounterDriftEvents)
	}
	if snap.ActivityPublished != 1 || snap.ActivityDropped != 2 {
		t.Errorf("activity = %d/%d, want 1/2", snap.ActivityPublished, snap.ActivityDropped)
	}
}
