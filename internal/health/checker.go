// Package health aggregates component health for the /health endpoint.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/linkshift/redirector/internal/domain"
)

// Component names reported by the checker
const (
	ComponentStorage = "storage"
	ComponentRules   = "rules"
	ComponentMatcher = "matcher"
	ComponentCache   = "cache"
)

// Storage is the durable rule store as seen by the checker
type Storage interface {
	HealthCheck(ctx context.Context) domain.HealthStatus
	GetStats(ctx context.Context) map[string]any
}

// SystemHealthChecker implements domain.HealthChecker over the redirector components
type SystemHealthChecker struct {
	storage Storage
	rules   domain.RuleService
	matcher domain.Resolver
	cache   domain.DecisionCache

	timeout   time.Duration
	startTime time.Time

	// Cached health status to avoid expensive checks on every request
	lastCheck   time.Time
	lastHealth  domain.SystemHealth
	cacheTTL    time.Duration
	healthMutex sync.Mutex
}

// NewSystemHealthChecker creates a new system health checker
func NewSystemHealthChecker(
	storage Storage,
	rules domain.RuleService,
	matcher domain.Resolver,
	cache domain.DecisionCache,
) *SystemHealthChecker {
	return &SystemHealthChecker{
		storage:   storage,
		rules:     rules,
		matcher:   matcher,
		cache:     cache,
		timeout:   5 * time.Second,
		cacheTTL:  5 * time.Second,
		startTime: time.Now(),
	}
}

// CheckHealth checks every component. Results are reused for a few seconds.
func (h *SystemHealthChecker) CheckHealth(ctx context.Context) domain.SystemHealth {
	h.healthMutex.Lock()
	defer h.healthMutex.Unlock()

	if !h.lastCheck.IsZero() && time.Since(h.lastCheck) < h.cacheTTL {
		return h.lastHealth
	}

	checkCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	now := time.Now()
	components := make(map[string]domain.HealthStatus, 4)
	overallStatus := domain.HealthStatusHealthy

	for _, name := range []string{ComponentStorage, ComponentRules, ComponentMatcher, ComponentCache} {
		status := h.CheckComponent(checkCtx, name)
		components[name] = status
		overallStatus = aggregateStatus(overallStatus, status.Status)
	}

	systemHealth := domain.SystemHealth{
		Status:     overallStatus,
		Timestamp:  now,
		Components: components,
		Metrics:    h.collectSystemMetrics(checkCtx),
		Uptime:     time.Since(h.startTime),
	}

	h.lastCheck = now
	h.lastHealth = systemHealth

	return systemHealth
}

// CheckComponent performs a health check on a specific component
func (h *SystemHealthChecker) CheckComponent(ctx context.Context, component string) domain.HealthStatus {
	switch component {
	case ComponentStorage:
		return h.storage.HealthCheck(ctx)
	case ComponentRules:
		return h.rules.HealthCheck(ctx)
	case ComponentMatcher:
		return h.matcher.HealthCheck(ctx)
	case ComponentCache:
		return h.cache.HealthCheck(ctx)
	default:
		return domain.HealthStatus{
			Status:    domain.HealthStatusUnhealthy,
			Message:   "Unknown component",
			Timestamp: time.Now(),
			Details: map[string]any{
				"component": component,
				"error":     "Component not found",
			},
		}
	}
}

// aggregateStatus keeps the worse of two statuses: unhealthy > degraded > healthy
func aggregateStatus(current, componentStatus string) string {
	statusPriority := map[string]int{
		domain.HealthStatusHealthy:   0,
		domain.HealthStatusDegraded:  1,
		domain.HealthStatusUnhealthy: 2,
	}

	if statusPriority[componentStatus] > statusPriority[current] {
		return componentStatus
	}
	return current
}

func (h *SystemHealthChecker) collectSystemMetrics(ctx context.Context) map[string]any {
	metrics := make(map[string]any)

	if stats := h.storage.GetStats(ctx); stats != nil {
		metrics[ComponentStorage] = stats
	}
	if stats := h.rules.GetStats(ctx); stats != nil {
		metrics[ComponentRules] = stats
	}
	if stats := h.matcher.GetStats(ctx); stats != nil {
		metrics[ComponentMatcher] = stats
	}

	cacheStats := h.cache.Stats()
	metrics[ComponentCache] = map[string]any{
		"hits":      cacheStats.Hits,
		"misses":    cacheStats.Misses,
		"size":      cacheStats.Size,
		"max_size":  cacheStats.MaxSize,
		"hit_ratio": cacheStats.HitRatio,
	}

	metrics["system"] = map[string]any{
		"uptime_seconds": time.Since(h.startTime).Seconds(),
	}

	return metrics
}

// IsHealthy returns true if the system is healthy
func (h *SystemHealthChecker) IsHealthy(ctx context.Context) bool {
	return h.CheckHealth(ctx).Status == domain.HealthStatusHealthy
}
