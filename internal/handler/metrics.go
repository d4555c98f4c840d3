package handler

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/tablemate/tablemate/internal/metrics"
)

// MetricsHandler exposes in-memory metrics.
type MetricsHandler struct {
	snapshotter metrics.Snapshotter
}

// NewMetricsHandler creates a new MetricsHandler.
func NewMetricsHandler(snapshotter metrics.Snapshotter) *MetricsHandler {
	return &MetricsHandler{snapshotter: snapshotter}
}

// Metrics returns metrics in Prometheus exposition format.
func (h *MetricsHandler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.snapshotter == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	snap := h.snapshotter.Snapshot()

	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	outcomes := make([]string, 0, len(snap.Joins))
	for outcome := range snap.Joins {
		outcomes = append(outcomes, outcome)
	}
	sort.Strings(outcomes)
	for _, outcome := range outcomes {
		writeMetric(w, "tablemate_event_joins_total{outcome=%q} %d\n", outcome, snap.Joins[outcome])
	}
	writeMetric(w, "tablemate_event_join_duration_seconds_count %d\n", snap.JoinDurationCount)
	writeMetric(w, "tablemate_event_join_duration_seconds_sum %.6f\n", float64(snap.JoinDurationTotalNs)/1e9)
	writeMetric(w, "tablemate_participant_counter_drift_events %d\n", snap.CounterDriftEvents)

	writeMetric(w, "tablemate_events_created_total %d\n", snap.EventsCreated)
	writeMetric(w, "tablemate_events_updated_total %d\n", snap.EventsUpdated)
	writeMetric(w, "tablemate_events_deleted_total %d\n", snap.EventsDeleted)
	writeMetric(w, "tablemate_meals_created_total %d\n", snap.MealsCreated)
	writeMetric(w, "tablemate_meals_deleted_total %d\n", snap.MealsDeleted)
	writeMetric(w, "tablemate_users_registered_total %d\n", snap.UsersRegistered)

	writeMetric(w, "tablemate_meal_title_cache_hits_total %d\n", snap.MealTitleCacheHits)
	writeMetric(w, "tablemate_meal_title_cache_misses_total %d\n", snap.MealTitleCacheMisses)

	writeMetric(w, "tablemate_activity_published_total{status=\"success\"} %d\n", snap.ActivityPublished)
	writeMetric(w, "tablemate_activity_published_total{status=\"dropped\"} %d\n", snap.ActivityDropped)
}

func writeMetric(w http.ResponseWriter, format string, args ...any) {
	_, _ = fmt.Fprintf(w, format, args...)
}
