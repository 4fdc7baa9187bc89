// Package health reports knowledge base freshness for the /health endpoint.
package health

import (
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/safemed/safemed-api/interfaces"
)

// defaultReloadSchedule mirrors the scheduler's reload cadence.
const defaultReloadSchedule = "06:00;18:00"

// reloadTime is one daily reload slot.
type reloadTime struct {
	hour   int
	minute int
}

// HealthCheckerImpl implements the interfaces.HealthChecker interface
type HealthCheckerImpl struct {
	dataStore   interfaces.DataStore
	reloadTimes []reloadTime
}

// NewHealthChecker creates a health checker reporting against the default
// reload schedule
func NewHealthChecker(dataStore interfaces.DataStore) interfaces.HealthChecker {
	return NewHealthCheckerForSchedule(dataStore, defaultReloadSchedule)
}

// NewHealthCheckerForSchedule creates a health checker whose next update
// reporting follows the given reload schedule. An unparseable schedule falls
// back to the default, so health reporting keeps working no matter what the
// caller passes.
func NewHealthCheckerForSchedule(dataStore interfaces.DataStore, schedule string) interfaces.HealthChecker {
	times := parseReloadTimes(schedule)
	if len(times) == 0 {
		times = parseReloadTimes(defaultReloadSchedule)
	}
	return &HealthCheckerImpl{
		dataStore:   dataStore,
		reloadTimes: times,
	}
}

// parseReloadTimes converts "HH:MM;HH:MM" into sorted reload slots. Any
// malformed entry makes the whole schedule invalid and returns nil.
func parseReloadTimes(schedule string) []reloadTime {
	parts := strings.Split(schedule, ";")
	times := make([]reloadTime, 0, len(parts))
	for _, part := range parts {
		parsed, err := time.Parse("15:04", strings.TrimSpace(part))
		if err != nil {
			return nil
		}
		times = append(times, reloadTime{hour: parsed.Hour(), minute: parsed.Minute()})
	}
	sort.Slice(times, func(i, j int) bool {
		if times[i].hour != times[j].hour {
			return times[i].hour < times[j].hour
		}
		return times[i].minute < times[j].minute
	})
	return times
}

// HealthCheck returns HTTP-specific health data with stricter thresholds
// Used by /health HTTP endpoint
func (h *HealthCheckerImpl) HealthCheck() (status string, data map[string]any, httpStatus int) {
	// Snapshot the knowledge base state
	drugs := h.dataStore.GetDrugs()
	aliasIndex := h.dataStore.GetAliasIndex()
	lastUpdate := h.dataStore.GetLastUpdated()
	isUpdating := h.dataStore.IsUpdating()

	dataAge := time.Since(lastUpdate)

	// Determine health status and HTTP code using stricter thresholds.
	// An empty knowledge base must never serve assessments.
	switch {
	case len(drugs) == 0:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 48*time.Hour:
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable

	case dataAge > 24*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	case isUpdating && dataAge > 6*time.Hour:
		status = "degraded"
		httpStatus = http.StatusServiceUnavailable

	default:
		status = "healthy"
		httpStatus = http.StatusOK
	}

	// Only data-related fields; system metrics belong to /metrics
	data = map[string]any{
		"last_update":    lastUpdate.Format(time.RFC3339),
		"data_age_hours": math.Round(dataAge.Hours()*10) / 10,
		"drugs":          len(drugs),
		"aliases":        len(aliasIndex),
		"is_updating":    isUpdating,
	}

	return status, data, httpStatus
}

// CalculateNextUpdate returns the next scheduled reload time
func (h *HealthCheckerImpl) CalculateNextUpdate() time.Time {
	now := time.Now()

	for _, rt := range h.reloadTimes {
		candidate := time.Date(now.Year(), now.Month(), now.Day(), rt.hour, rt.minute, 0, 0, now.Location())
		if now.Before(candidate) {
			return candidate
		}
	}

	// All of today's slots have passed, so the next reload is tomorrow's first
	first := h.reloadTimes[0]
	return time.Date(now.Year(), now.Month(), now.Day(), first.hour, first.minute, 0, 0, now.Location()).AddDate(0, 0, 1)
}
