package database

import (
	"context"
	"fmt"
	"time"
)

// HealthStatus describes the database portion of a health check response.
type HealthStatus struct {
	Status  string `json:"status"`
	Latency string `json:"latency,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Health pings the database and reports its status with round-trip latency.
func (c *Client) Health(ctx context.Context) (HealthStatus, error) {
	start := time.Now()
	if err := c.PingContext(ctx); err != nil {
		return HealthStatus{Status: "unhealthy", Error: err.Error()}, fmt.Errorf("database ping failed: %w", err)
	}
	return HealthStatus{
		Status:  "healthy",
		Latency: time.Since(start).Round(time.Millisecond).String(),
	}, nil
}
