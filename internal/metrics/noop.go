package metrics

import "time"

// NoopRecorder implements Recorder with no-op methods.
type NoopRecorder struct{}

// NewNoop returns a Recorder that discards all metrics.
func NewNoop() Recorder {
	return &NoopRecorder{}
}

func (n *NoopRecorder) IncJoin(outcome string)                     {}
func (n *NoopRecorder) ObserveJoinDuration(duration time.Duration) {}
func (n *NoopRecorder) SetCounterDrift(events int)                 {}
func (n *NoopRecorder) IncEventCreated()                           {}
func (n *NoopRecorder) IncEventUpdated()                           {}
func (n *NoopRecorder) IncEventDeleted()                           {}
func (n *NoopRecorder) IncMealCreated()                            {}
func (n *NoopRecorder) IncMealDeleted()                            {}
func (n *NoopRecorder) IncUserRegistered()                         {}
func (n *NoopRecorder) IncMealTitleCacheHit()                      {}
func (n *NoopRecorder) IncMealTitleCacheMiss()                     {}
func (n *NoopRecorder) IncActivityPublished(status string)         {}
