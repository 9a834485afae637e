package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/aescanero/lslrelay/pkg/stream"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Cross-origin access is unrestricted
	},
}

// InletOpener opens a fresh inlet on the relay stream
type InletOpener func(ctx context.Context) (stream.Inlet, error)

// Frame is the JSON message sent for each sample
type Frame struct {
	SourceID  string  `json:"source_id"`
	Value     string  `json:"value"`
	Timestamp float64 `json:"timestamp"`
	Seq       string  `json:"seq,omitempty"`
}

// Handler handles WebSocket connections
type Handler struct {
	open   InletOpener
	logger *zap.Logger
}

// NewHandler creates a new WebSocket handler
func NewHandler(open InletOpener, logger *zap.Logger) *Handler {
	return &Handler{
		open:   open,
		logger: logger,
	}
}

// HandleStream streams samples of the relay stream to one client
func (h *Handler) HandleStream(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("failed to upgrade connection", zap.Error(err))
		return
	}
	defer func() { _ = conn.Close() }()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	inlet, err := h.open(ctx)
	if err != nil {
		h.logger.Error("failed to open inlet", zap.Error(err))
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, err.Error()),
			time.Now().Add(writeTimeout))
		return
	}
	defer func() { _ = inlet.Close() }()

	sourceID := inlet.Descriptor().SourceID

	h.logger.Info("WebSocket connection established",
		zap.String("source_id", sourceID),
		zap.String("client", c.ClientIP()))

	// Reader goroutine only detects client close
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		sample, err := inlet.Pull(ctx)
		if err != nil {
			if !errors.Is(err, context.Canceled) {
				h.logger.Warn("inlet closed", zap.String("source_id", sourceID), zap.Error(err))
			}
			return
		}

		for _, v := range sample.Values {
			frame := Frame{
				SourceID:  sourceID,
				Value:     v,
				Timestamp: sample.Timestamp,
				Seq:       sample.Seq,
			}

			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteJSON(frame); err != nil {
				h.logger.Error("failed to write message", zap.Error(err))
				return
			}
		}
	}
}
