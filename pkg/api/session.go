package api

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// gate gives host requests exclusive access one at a time. An open session
// holds the gate across requests until it is closed or its lease runs out;
// only requests carrying the session token get through meanwhile. The lease
// does not run while a session request is in flight.
type gate struct {
	sem   chan struct{}
	lease time.Duration
	log   *slog.Logger

	mu       sync.Mutex
	token    string
	timer    *time.Timer
	inflight int
}

func newGate(lease time.Duration, log *slog.Logger) *gate {
	return &gate{
		sem:   make(chan struct{}, 1),
		lease: lease,
		log:   log,
	}
}

func (g *gate) acquire(ctx context.Context) error {
	select {
	case g.sem <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g *gate) release() { <-g.sem }

func (g *gate) open(ctx context.Context) (string, error) {
	if err := g.acquire(ctx); err != nil {
		return "", err
	}

	token := uuid.NewString()
	g.mu.Lock()
	g.token = token
	g.inflight = 0
	g.timer = time.AfterFunc(g.lease, func() {
		if g.close(token) {
			g.log.Warn("session lease expired", "token", token)
		}
	})
	g.mu.Unlock()

	g.log.Debug("session opened", "token", token)
	return token, nil
}

func (g *gate) close(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if token == "" || token != g.token {
		return false
	}
	g.token = ""
	g.inflight = 0
	g.timer.Stop()
	g.release()
	return true
}

// enter starts a request inside the session owned by token and reports
// whether it may proceed. The lease is held until the matching leave.
func (g *gate) enter(token string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if token == "" || token != g.token {
		return false
	}
	// a false Stop with nothing in flight means the lease already fired
	if g.inflight == 0 && !g.timer.Stop() {
		return false
	}
	g.inflight++
	return true
}

// leave ends a request started by enter and restarts the lease once the
// session is idle
func (g *gate) leave(token string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if token != g.token || g.inflight == 0 {
		return
	}
	g.inflight--
	if g.inflight == 0 {
		g.timer.Reset(g.lease)
	}
}

func (g *gate) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := c.GetHeader(SessionHeader); token != "" {
			if !g.enter(token) {
				abortWithError(c, errSessionExpired)
				return
			}
			defer g.leave(token)
			c.Next()
			return
		}

		if err := g.acquire(c.Request.Context()); err != nil {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "busy"})
			return
		}
		defer g.release()
		c.Next()
	}
}

// SessionResponse carries a new session token
type SessionResponse struct {
	Token string `json:"token"`
}

// openSession godoc
// @Summary Open an exclusive session
// @Description Blocks other clients until the session is closed or its lease expires. Send the token in the X-Reasend-Session header.
// @Tags sessions
// @Produce json
// @Success 201 {object} SessionResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/v1/sessions [post]
func (s *Server) openSession(c *gin.Context) {
	token, err := s.gate.open(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusServiceUnavailable, ErrorResponse{Error: err.Error(), Code: "busy"})
		return
	}
	c.JSON(http.StatusCreated, SessionResponse{Token: token})
}

// closeSession godoc
// @Summary Close a session
// @Tags sessions
// @Param token path string true "Session token"
// @Success 204
// @Failure 409 {object} ErrorResponse
// @Router /api/v1/sessions/{token} [delete]
func (s *Server) closeSession(c *gin.Context) {
	if !s.gate.close(c.Param("token")) {
		abortWithError(c, errSessionExpired)
		return
	}
	s.log.Debug("session closed", "token", c.Param("token"))
	c.Status(http.StatusNoContent)
}
