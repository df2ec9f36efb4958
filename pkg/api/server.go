// Package api provides the REST bridge that exposes a host's send primitives
// over HTTP, so reasend clients can drive a host from another process.
package api

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/james-see/reasend/pkg/host"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title reasend bridge API
// @version 1.0
// @description Track send primitives of a DAW host, served over HTTP
// @host localhost:8080
// @BasePath /api/v1

// SessionHeader carries the token of an exclusive session
const SessionHeader = "X-Reasend-Session"

// DefaultSessionLease is how long an idle session keeps the host locked
const DefaultSessionLease = 10 * time.Second

// Option configures a Server
type Option func(*Server)

// WithLogger sets the logger for session and host events
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithSessionLease sets how long an idle session may hold the host
func WithSessionLease(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.lease = d
		}
	}
}

// Server serves one host
type Server struct {
	host   host.Host
	log    *slog.Logger
	lease  time.Duration
	gate   *gate
	engine *gin.Engine
}

// NewServer builds the gin engine for h
func NewServer(h host.Host, opts ...Option) *Server {
	s := &Server{
		host:  h,
		log:   slog.Default(),
		lease: DefaultSessionLease,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.gate = newGate(s.lease, s.log)
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run listens on addr until the server fails
func (s *Server) Run(addr string) error {
	s.log.Info("bridge listening", "addr", addr)
	return s.engine.Run(addr)
}

// StartServer serves h on the specified port
func StartServer(port int, h host.Host, opts ...Option) error {
	return NewServer(h, opts...).Run(fmt.Sprintf(":%d", port))
}

func (s *Server) routes() *gin.Engine {
	r := gin.Default()

	// CORS middleware
	r.Use(corsMiddleware())

	// Health check
	r.GET("/health", healthCheck)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		v1.GET("/health", healthCheck)
		v1.POST("/sessions", s.openSession)
		v1.DELETE("/sessions/:token", s.closeSession)
		v1.POST("/midiflags/decode", decodeFlags)
		v1.POST("/midiflags/encode", encodeFlags)

		hosted := v1.Group("", s.gate.middleware())
		hosted.GET("/extension", s.extensionStatus)
		hosted.GET("/tracks", s.listTracks)
		hosted.GET("/pointers/:pointer", s.trackFromPointer)
		hosted.GET("/tracks/:track/routes/:category", s.countSends)
		hosted.DELETE("/tracks/:track/routes/:category/:index", s.removeSend)
		hosted.GET("/tracks/:track/routes/:category/:index/info/:param", s.getInfo)
		hosted.PUT("/tracks/:track/routes/:category/:index/info/:param", s.setInfo)
		hosted.GET("/tracks/:track/routes/:category/:index/ext/:param", s.getExtInfo)
		hosted.PUT("/tracks/:track/routes/:category/:index/ext/:param", s.setExtInfo)
	}

	// Swagger docs
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	return r
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+SessionHeader)

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

var errSessionExpired = errors.New("session expired or unknown")

func statusFor(code string) int {
	switch code {
	case "invalid_track", "index_out_of_range":
		return http.StatusNotFound
	case "invalid_param", "read_only", "bad_request":
		return http.StatusBadRequest
	case "extension_unavailable":
		return http.StatusNotImplemented
	case "session_expired":
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, err error) {
	code := host.ErrorCode(err)
	if errors.Is(err, errSessionExpired) {
		code = "session_expired"
	}
	c.AbortWithStatusJSON(statusFor(code), ErrorResponse{Error: err.Error(), Code: code})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: "bad_request"})
}

// healthCheck godoc
// @Summary Health check endpoint
// @Description Returns the health status of the bridge
// @Tags health
// @Produce json
// @Success 200 {object} map[string]string
// @Router /health [get]
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "reasend",
	})
}
