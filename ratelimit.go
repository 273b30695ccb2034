package main

import (
	"context"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/puzpuzpuz/xsync/v3"
)

// ipLimiter hands each ip maxTokens requests, giving back a couple every decay interval.
type ipLimiter struct {
	buckets   *xsync.MapOf[string, *atomic.Int32]
	maxTokens int32
}

func newIPLimiter(ctx context.Context, maxTokens int32, decay time.Duration) *ipLimiter {
	l := &ipLimiter{
		buckets:   xsync.NewMapOf[string, *atomic.Int32](),
		maxTokens: maxTokens,
	}

	go func() {
		ticker := time.NewTicker(decay)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				l.decay()
			}
		}
	}()

	return l
}

func (l *ipLimiter) decay() {
	for key, bucket := range l.buckets.Range {
		if bucket.Add(-2) <= 0 {
			l.buckets.Delete(key)
		}
	}
}

func (l *ipLimiter) limited(ip string) bool {
	nb, _ := l.buckets.LoadOrStore(ip, &atomic.Int32{})

	if nb.Load() < l.maxTokens {
		nb.Add(1)
		return false
	}
	return true
}

func (l *ipLimiter) middleware(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			ip = r.RemoteAddr
		}
		if l.limited(ip) {
			http.Error(w, "too many requests", http.StatusTooManyRequests)
			return
		}
		next(w, r)
	}
}
