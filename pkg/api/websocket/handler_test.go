package websocket

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/aescanero/lslrelay/pkg/adapters/transport/memory"
	"github.com/aescanero/lslrelay/pkg/stream"
	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandleStream(t *testing.T) {
	gin.SetMode(gin.TestMode)

	desc, err := stream.NewDescriptor("markers", "markers", 1, stream.IrregularRate, stream.FormatString, "ws-flask-markers")
	require.NoError(t, err)

	hub := memory.NewHub(nil, 0)
	out, err := hub.NewOutlet(desc)
	require.NoError(t, err)
	defer out.Close()

	opened := make(chan struct{}, 1)
	h := NewHandler(func(ctx context.Context) (stream.Inlet, error) {
		in, err := hub.NewInlet(desc.SourceID)
		opened <- struct{}{}
		return in, err
	}, zap.NewNop())

	router := gin.New()
	router.GET("/markers/ws", h.HandleStream)

	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/markers/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	select {
	case <-opened:
	case <-time.After(time.Second):
		t.Fatal("inlet was not opened")
	}

	pushed, err := out.Push(context.Background(), []string{"hello"})
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))
	var frame Frame
	require.NoError(t, conn.ReadJSON(&frame))

	assert.Equal(t, "ws-flask-markers", frame.SourceID)
	assert.Equal(t, "hello", frame.Value)
	assert.Equal(t, pushed.Timestamp, frame.Timestamp)
}
