package models

import "time"

// SystemMetrics is a lightweight snapshot of the service instrumentation.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	GenerationsSucceeded     uint64    `json:"generations_succeeded"`
	GenerationsFailed        uint64    `json:"generations_failed"`
	AverageAttempts          float64   `json:"average_attempts"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
