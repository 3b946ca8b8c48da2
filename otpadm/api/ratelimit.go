package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

/********** 接口限速（按来源 IP） **********/

type ipLimiter struct {
	mu    sync.Mutex
	m     map[string]*ipEntry
	r     rate.Limit
	burst int

	lastGC time.Time
}

type ipEntry struct {
	lim  *rate.Limiter
	seen time.Time
}

func newIPLimiter(perSec float64, burst int) *ipLimiter {
	return &ipLimiter{
		m:      make(map[string]*ipEntry),
		r:      rate.Limit(perSec),
		burst:  burst,
		lastGC: time.Now(),
	}
}

func (l *ipLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	// 顺手清理 10 分钟没来过的 IP
	if now.Sub(l.lastGC) > 10*time.Minute {
		for k, e := range l.m {
			if now.Sub(e.seen) > 10*time.Minute {
				delete(l.m, k)
			}
		}
		l.lastGC = now
	}

	e, ok := l.m[ip]
	if !ok {
		e = &ipEntry{lim: rate.NewLimiter(l.r, l.burst)}
		l.m[ip] = e
	}
	e.seen = now
	return e.lim
}

// RateLimit：默认每 IP 25 req/s、burst 50；超限 429
func (s *Server) RateLimit() gin.HandlerFunc {
	l := newIPLimiter(25, 50)
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			respAbort(c, http.StatusTooManyRequests, http.StatusTooManyRequests, "Too many requests")
			return
		}
		c.Next()
	}
}
