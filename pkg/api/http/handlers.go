package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/aescanero/lslrelay/internal/application/relay"
	"github.com/aescanero/lslrelay/pkg/stream"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// maxBodyBytes caps a marker request body
const maxBodyBytes = 1 << 20

// ErrNotJSON is returned when a marker request is not declared as JSON
var ErrNotJSON = errors.New("request content type must be application/json")

// MessageResponse is the body of every marker response
type MessageResponse struct {
	Message string `json:"message"`
}

// HealthResponse is the body of the health endpoint
type HealthResponse struct {
	Status string            `json:"status"`
	Stream stream.Descriptor `json:"stream"`
	Error  string            `json:"error,omitempty"`
}

// handleHealth handles health check requests
func (s *Server) handleHealth(c *gin.Context) {
	resp := HealthResponse{
		Status: "healthy",
		Stream: s.relay.Descriptor(),
	}

	if s.health != nil && !s.health.IsHealthy() {
		resp.Status = "unhealthy"
		resp.Error = s.health.GetStatus().LastError
		c.JSON(http.StatusServiceUnavailable, resp)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// handleMarker accepts a marker and publishes it on the relay stream
func (s *Server) handleMarker(c *gin.Context) {
	if !isJSON(c.ContentType()) {
		s.respond(c, s.relay.Reject(ErrNotJSON))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxBodyBytes))
	if err != nil {
		s.respond(c, s.relay.Reject(fmt.Errorf("failed to read request body: %w", err)))
		return
	}

	s.respond(c, s.relay.AcceptMarker(c.Request.Context(), body))
}

// respond maps a relay result to the HTTP contract: 202 on success, 500 on
// any failure with the error text as message.
func (s *Server) respond(c *gin.Context, res relay.Result) {
	if res.OK() {
		c.JSON(http.StatusAccepted, MessageResponse{Message: "OK"})
		return
	}

	s.logger.Error("marker request failed",
		zap.String("request_id", c.GetString(RequestIDHeader)),
		zap.String("kind", res.Kind.String()),
		zap.String("error", res.Error()))

	c.JSON(http.StatusInternalServerError, MessageResponse{Message: res.Error()})
}

// isJSON reports whether a media type, without parameters, indicates JSON
func isJSON(mediaType string) bool {
	mediaType = strings.ToLower(strings.TrimSpace(mediaType))
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}
