// Package health implements Health Convergence (C5): polling the discovery
// agent after registration until the new instance is reported healthy.
package health

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/io-pipeline/platform-registration-service/internal/config"
	"github.com/io-pipeline/platform-registration-service/internal/model"
)

const maxAttempts = 10

// DiscoveryClient is the narrow slice of C1 this component depends on.
type DiscoveryClient interface {
	HealthyNodes(ctx context.Context, serviceName string) []model.HealthyNode
}

// Converger waits for a newly-registered instance to show up as healthy.
type Converger struct {
	discovery DiscoveryClient
	logger    config.Logger
	sleep     func(time.Duration)
}

// NewConverger builds a Converger against the live discovery client.
func NewConverger(discovery DiscoveryClient, logger config.Logger) *Converger {
	return &Converger{discovery: discovery, logger: logger, sleep: time.Sleep}
}

// backoff is the linear-then-capped delay between polling attempts:
// min(3+attempt, 10) seconds.
func backoff(attempt int) time.Duration {
	seconds := 3 + attempt
	if seconds > 10 {
		seconds = 10
	}
	return time.Duration(seconds) * time.Second
}

// WaitForHealthy polls up to 10 times for serviceID to appear among
// serviceName's healthy nodes. A malformed serviceId fails immediately.
// Any query error during a poll is treated as "not yet healthy" and the
// loop continues; the loop never returns an error, only a boolean.
func (c *Converger) WaitForHealthy(ctx context.Context, serviceID string) bool {
	serviceName, ok := model.SplitServiceName(serviceID)
	if !ok {
		c.logger.Error("无法从serviceId推导serviceName", zap.String("serviceId", serviceID))
		return false
	}

	for attempt := 0; attempt < maxAttempts; attempt++ {
		nodes := c.discovery.HealthyNodes(ctx, serviceName)
		for _, n := range nodes {
			if n.ServiceID == serviceID {
				return true
			}
		}

		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return false
			default:
				c.sleep(backoff(attempt))
			}
		}
	}
	return false
}
