package middleware

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/apierror"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// idleTTL is how long a client may stay silent before its limiter is dropped.
const idleTTL = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// limiterStore hands out one token bucket per client IP.
type limiterStore struct {
	mu        sync.Mutex
	clients   map[string]*client
	limit     rate.Limit
	burst     int
	lastPurge time.Time
	now       func() time.Time
}

func newLimiterStore(perMinute int) *limiterStore {
	return &limiterStore{
		clients: make(map[string]*client),
		limit:   rate.Every(time.Minute / time.Duration(perMinute)),
		burst:   perMinute,
		now:     time.Now,
	}
}

func (s *limiterStore) get(ip string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastPurge) > idleTTL {
		s.purge(now)
	}

	cl, ok := s.clients[ip]
	if !ok {
		cl = &client{limiter: rate.NewLimiter(s.limit, s.burst)}
		s.clients[ip] = cl
	}
	cl.lastSeen = now
	return cl.limiter
}

// purge must be called with s.mu held.
func (s *limiterStore) purge(now time.Time) {
	purged := 0
	for ip, cl := range s.clients {
		if now.Sub(cl.lastSeen) > idleTTL {
			delete(s.clients, ip)
			purged++
		}
	}
	s.lastPurge = now
	if purged > 0 {
		log.Debug().
			Int("purged", purged).
			Int("remaining", len(s.clients)).
			Msg("rate limiter entries purged")
	}
}

// RateLimiter allows perMinute requests per client IP, refilled continuously.
// A non-positive perMinute disables limiting.
func RateLimiter(perMinute int) gin.HandlerFunc {
	if perMinute <= 0 {
		return func(c *gin.Context) { c.Next() }
	}
	store := newLimiterStore(perMinute)

	return func(c *gin.Context) {
		lim := store.get(c.ClientIP())
		res := lim.Reserve()
		if delay := res.Delay(); delay > 0 {
			res.Cancel()
			secs := int(math.Ceil(delay.Seconds()))
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, apierror.WithCode(apierror.CodeRateLimited, "too many requests, retry later"))
			return
		}
		c.Next()
	}
}
