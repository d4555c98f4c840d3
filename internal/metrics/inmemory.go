package metrics

import (
	"sync"
	"sync/atomic"
	"time"
)

// Snapshot captures current in-memory counters.
type Snapshot struct {
	Joins                map[string]uint64
	JoinDurationCount    uint64
	JoinDurationTotalNs  int64
	CounterDriftEvents   int64
	EventsCreated        uint64
	EventsUpdated        uint64
	EventsDeleted        uint64
	MealsCreated         uint64
	MealsDeleted         uint64
	UsersRegistered      uint64
	MealTitleCacheHits   uint64
	MealTitleCacheMisses uint64
	ActivityPublished    uint64
	ActivityDropped      uint64
}

// InMemoryRecorder stores metrics in memory. It backs the /metrics
// endpoint and is handy in tests.
type InMemoryRecorder struct {
	mu    sync.Mutex
	joins map[string]uint64

	joinDurationCount    uint64
	joinDurationTotalNs  int64
	counterDriftEvents   int64
	eventsCreated        uint64
	eventsUpdated        uint64
	eventsDeleted        uint64
	mealsCreated         uint64
	mealsDeleted         uint64
	usersRegistered      uint64
	mealTitleCacheHits   uint64
	mealTitleCacheMisses uint64
	activityPublished    uint64
	activityDropped      uint64
}

// NewInMemory returns a Recorder that stores counters in memory.
func NewInMemory() *InMemoryRecorder {
	return &InMemoryRecorder{joins: make(map[string]uint64)}
}

// Snapshot returns a copy of the counters.
func (m *InMemoryRecorder) Snapshot() Snapshot {
	m.mu.Lock()
	joins := make(map[string]uint64, len(m.joins))
	for k, v := range m.joins {
		joins[k] = v
	}
	m.mu.Unlock()

	return Snapshot{
		Joins:                joins,
		JoinDurationCount:    atomic.LoadUint64(&m.joinDurationCount),
		JoinDurationTotalNs:  atomic.LoadInt64(&m.joinDurationTotalNs),
		CounterDriftEvents:   atomic.LoadInt64(&m.counterDriftEvents),
		EventsCreated:        atomic.LoadUint64(&m.eventsCreated),
		EventsUpdated:        atomic.LoadUint64(&m.eventsUpdated),
		EventsDeleted:        atomic.LoadUint64(&m.eventsDeleted),
		MealsCreated:         atomic.LoadUint64(&m.mealsCreated),
		MealsDeleted:         atomic.LoadUint64(&m.mealsDeleted),
		UsersRegistered:      atomic.LoadUint64(&m.usersRegistered),
		MealTitleCacheHits:   atomic.LoadUint64(&m.mealTitleCacheHits),
		MealTitleCacheMisses: atomic.LoadUint64(&m.mealTitleCacheMisses),
		ActivityPublished:    atomic.LoadUint64(&m.activityPublished),
		ActivityDropped:      atomic.LoadUint64(&m.activityDropped),
	}
}

// IncJoin counts a join attempt by outcome.
func (m *InMemoryRecorder) IncJoin(outcome string) {
	m.mu.Lock()
	m.joins[outcome]++
	m.mu.Unlock()
}

// ObserveJoinDuration records how long a join took end to end.
func (m *InMemoryRecorder) ObserveJoinDuration(duration time.Duration) {
	atomic.AddUint64(&m.joinDurationCount, 1)
	atomic.AddInt64(&m.joinDurationTotalNs, duration.Nanoseconds())
}

// SetCounterDrift records how many events the last reconcile pass found
// with a counter that disagrees with the ledger.
func (m *InMemoryRecorder) SetCounterDrift(events int) {
	atomic.StoreInt64(&m.counterDriftEvents, int64(events))
}

func (m *InMemoryRecorder) IncEventCreated()   { atomic.AddUint64(&m.eventsCreated, 1) }
func (m *InMemoryRecorder) IncEventUpdated()   { atomic.AddUint64(&m.eventsUpdated, 1) }
func (m *InMemoryRecorder) IncEventDeleted()   { atomic.AddUint64(&m.eventsDeleted, 1) }
func (m *InMemoryRecorder) IncMealCreated()    { atomic.AddUint64(&m.mealsCreated, 1) }
func (m *InMemoryRecorder) IncMealDeleted()    { atomic.AddUint64(&m.mealsDeleted, 1) }
func (m *InMemoryRecorder) IncUserRegistered() { atomic.AddUint64(&m.usersRegistered, 1) }

func (m *InMemoryRecorder) IncMealTitleCacheHit()  { atomic.AddUint64(&m.mealTitleCacheHits, 1) }
func (m *InMemoryRecorder) IncMealTitleCacheMiss() { atomic.AddUint64(&m.mealTitleCacheMisses, 1) }

// IncActivityPublished increments the activity publish counter by status.
func (m *InMemoryRecorder) IncActivityPublished(status string) {
	switch status {
	case "success":
		atomic.AddUint64(&m.activityPublished, 1)
	case "dropped":
		atomic.AddUint64(&m.activityDropped, 1)
	}
}
