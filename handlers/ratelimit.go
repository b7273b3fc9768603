package handlers

import (
	"net"
	"net/http"
	"sync"
	"time"
)

type attemptData struct {
	count        int
	firstAttempt time.Time
}

// rateLimiter blocks a client IP after repeated failures inside a sliding
// window. Login and registration each get their own instance.
type rateLimiter struct {
	sync.Mutex
	maxAttempts   int
	window        time.Duration
	blockDuration time.Duration
	attempts      map[string]*attemptData
	blocked       map[string]time.Time
}

func newRateLimiter(maxAttempts int, window, blockDuration time.Duration) *rateLimiter {
	return &rateLimiter{
		maxAttempts:   maxAttempts,
		window:        window,
		blockDuration: blockDuration,
		attempts:      make(map[string]*attemptData),
		blocked:       make(map[string]time.Time),
	}
}

// Allow returns false if the IP is currently blocked.
// It also cleans up expired blocks.
func (r *rateLimiter) Allow(ip string) bool {
	r.Lock()
	defer r.Unlock()

	if unblockTime, ok := r.blocked[ip]; ok {
		if time.Now().Before(unblockTime) {
			return false
		}
		// Block expired
		delete(r.blocked, ip)
		delete(r.attempts, ip)
	}
	return true
}

// RecordFailure increments the failure count and blocks if the threshold
// is reached.
func (r *rateLimiter) RecordFailure(ip string) {
	r.Lock()
	defer r.Unlock()

	// Cap the map size so an address-spraying client cannot exhaust memory.
	if len(r.attempts) > 10000 {
		r.attempts = make(map[string]*attemptData)
	}

	data, exists := r.attempts[ip]
	if !exists || time.Since(data.firstAttempt) > r.window {
		r.attempts[ip] = &attemptData{count: 1, firstAttempt: time.Now()}
		return
	}
	data.count++
	if data.count >= r.maxAttempts {
		r.blocked[ip] = time.Now().Add(r.blockDuration)
	}
}

// Reset clears the counter for an IP (used on successful login).
func (r *rateLimiter) Reset(ip string) {
	r.Lock()
	defer r.Unlock()
	delete(r.attempts, ip)
	delete(r.blocked, ip)
}

func getClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}
