package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/inkpost/inkpost/pkg/errors"
	"github.com/inkpost/inkpost/pkg/response"
)

// RateLimit returns a middleware that limits requests per (clientIP, path)
// within a fixed window. This is a blunt safety net in front of the whole
// API; the password reset flow has its own dedicated per-IP limiter.
func RateLimit(maxRequests int, window time.Duration) gin.HandlerFunc {
	type counter struct {
		count     int
		windowEnd time.Time
	}

	var (
		mu        sync.Mutex
		data      = make(map[string]*counter)
		nextSweep time.Time
	)

	// Drops expired counters to keep the map bounded. Runs inline on the
	// request path instead of a background goroutine, so the middleware
	// holds no resources beyond the map itself.
	sweep := func(now time.Time) {
		if now.Before(nextSweep) {
			return
		}
		for k, v := range data {
			if now.After(v.windowEnd) {
				delete(data, k)
			}
		}
		nextSweep = now.Add(time.Minute)
	}

	return func(c *gin.Context) {
		if maxRequests <= 0 || window <= 0 {
			c.Next()
			return
		}

		key := c.ClientIP() + "|" + c.FullPath()
		now := time.Now()

		mu.Lock()
		sweep(now)
		ct, ok := data[key]
		if !ok || now.After(ct.windowEnd) {
			ct = &counter{count: 0, windowEnd: now.Add(window)}
			data[key] = ct
		}
		ct.count++
		remaining := maxRequests - ct.count
		resetIn := time.Until(ct.windowEnd)
		mu.Unlock()

		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(max(0, remaining)))
		c.Header("X-RateLimit-Reset", strconv.Itoa(int(resetIn.Seconds())))

		if ct.count > maxRequests {
			response.Error(c, errors.ErrRateLimit)
			c.Abort()
			return
		}

		c.Next()
	}
}
