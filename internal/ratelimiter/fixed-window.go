package ratelimiter

import (
	"sync"
	"time"
)

type Limiter interface {
	Allow(key string) (bool, time.Duration)
}

type Config struct {
	RequestsPerTimeFrame int
	TimeFrame            time.Duration
	Enabled              bool
}

type windowCount struct {
	count   int
	started time.Time
}

// FixedWindow counts requests per key (client IP, or phone number for the
// OTP endpoints) inside a fixed window. Counts older than one window are
// discarded on access; a background sweep drops idle keys.
type FixedWindow struct {
	mu      sync.Mutex
	clients map[string]*windowCount
	limit   int
	window  time.Duration
}

func NewFixedWindow(limit int, window time.Duration) *FixedWindow {
	fw := &FixedWindow{
		clients: make(map[string]*windowCount),
		limit:   limit,
		window:  window,
	}
	go fw.sweep()
	return fw
}

func (fw *FixedWindow) Allow(key string) (bool, time.Duration) {
	now := time.Now()

	fw.mu.Lock()
	defer fw.mu.Unlock()

	wc, ok := fw.clients[key]
	if !ok || now.Sub(wc.started) >= fw.window {
		fw.clients[key] = &windowCount{count: 1, started: now}
		return true, 0
	}

	if wc.count < fw.limit {
		wc.count++
		return true, 0
	}

	return false, fw.window - now.Sub(wc.started)
}

func (fw *FixedWindow) sweep() {
	ticker := time.NewTicker(fw.window)
	for range ticker.C {
		now := time.Now()
		fw.mu.Lock()
		for key, wc := range fw.clients {
			if now.Sub(wc.started) >= fw.window {
				delete(fw.clients, key)
			}
		}
		fw.mu.Unlock()
	}
}
