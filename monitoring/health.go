package monitoring

import (
	"sort"
	"sync"
)

// HealthCheckCollector runs named dependency checks for the readiness probe
type HealthCheckCollector struct {
	mu           sync.RWMutex
	healthChecks map[string]func() error
}

// NewHealthCheckCollector creates a new health check collector
func NewHealthCheckCollector() *HealthCheckCollector {
	return &HealthCheckCollector{
		healthChecks: make(map[string]func() error),
	}
}

// RegisterHealthCheck registers a health check function
func (c *HealthCheckCollector) RegisterHealthCheck(name string, check func() error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.healthChecks[name] = check
}

// CollectHealthMetrics runs every check and returns the names of the failing ones
func (c *HealthCheckCollector) CollectHealthMetrics() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var failed []string
	for name, check := range c.healthChecks {
		if err := check(); err != nil {
			RecordError("health_check", name)
			failed = append(failed, name)
		}
	}
	sort.Strings(failed)
	return failed
}
