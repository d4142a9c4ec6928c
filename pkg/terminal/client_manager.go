package terminal

import (
	"fmt"
	"sync"
	"time"

	"github.com/antibyte/chayakada/pkg/logger"
)

// RateLimitInfo holds the request counter of one IP address
type RateLimitInfo struct {
	requests  int
	lastReset time.Time
}

// ClientManager limits how many runs an IP address may start per minute
type ClientManager struct {
	rateLimits map[string]*RateLimitInfo
	limit      int
	now        func() time.Time
	mu         sync.Mutex
}

// NewClientManager creates a manager allowing limit runs per minute and IP.
// A limit of zero or less disables rate limiting.
func NewClientManager(limit int) *ClientManager {
	return &ClientManager{
		rateLimits: make(map[string]*RateLimitInfo),
		limit:      limit,
		now:        time.Now,
	}
}

// CheckRateLimit counts a run for ipAddress and fails once the limit is hit
func (cm *ClientManager) CheckRateLimit(ipAddress string) error {
	if cm.limit <= 0 {
		return nil
	}

	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := cm.now()
	rateLimit, exists := cm.rateLimits[ipAddress]
	if !exists || now.Sub(rateLimit.lastReset) > time.Minute {
		rateLimit = &RateLimitInfo{lastReset: now}
		cm.rateLimits[ipAddress] = rateLimit
	}

	rateLimit.requests++
	if rateLimit.requests > cm.limit {
		logger.SecurityWarn("Rate limit exceeded for IP %s: %d runs in last minute", ipAddress, rateLimit.requests)
		return fmt.Errorf("rate limit exceeded: too many runs from %s", ipAddress)
	}
	return nil
}

// Prune drops counters older than a minute
func (cm *ClientManager) Prune() {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	now := cm.now()
	for ip, info := range cm.rateLimits {
		if now.Sub(info.lastReset) > time.Minute {
			delete(cm.rateLimits, ip)
		}
	}
}
