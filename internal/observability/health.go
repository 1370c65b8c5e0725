package observability

import (
	"encoding/json"
	"net/http"
	"sort"
	"sync"
	"time"
)

// HealthChecker tracks liveness plus per-dependency readiness: the run is
// ready only once every registered dependency (live node, each chain client)
// has reported in.
type HealthChecker struct {
	mu        sync.Mutex
	deps      map[string]bool
	startTime time.Time
}

// NewHealthChecker creates a health checker with no dependencies registered.
func NewHealthChecker() *HealthChecker {
	return &HealthChecker{
		deps:      make(map[string]bool),
		startTime: time.Now(),
	}
}

// SetReady records one dependency's readiness.
func (h *HealthChecker) SetReady(dep string, ready bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.deps[dep] = ready
}

// IsReady reports whether every registered dependency is ready. A checker
// with no dependencies is not ready.
func (h *HealthChecker) IsReady() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.deps) == 0 {
		return false
	}
	for _, ok := range h.deps {
		if !ok {
			return false
		}
	}
	return true
}

// LivenessHandler returns HTTP 200 if the process is alive.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "alive",
		"uptime": time.Since(h.startTime).String(),
	})
}

// ReadinessHandler returns HTTP 200 once every dependency is ready, 503
// otherwise with the dependencies still pending.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if h.IsReady() {
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"status": "ready",
		})
		return
	}

	h.mu.Lock()
	var pending []string
	for dep, ok := range h.deps {
		if !ok {
			pending = append(pending, dep)
		}
	}
	h.mu.Unlock()
	sort.Strings(pending)

	w.WriteHeader(http.StatusServiceUnavailable)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "not_ready",
		"pending": pending,
	})
}
