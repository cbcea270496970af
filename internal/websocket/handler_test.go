package websocket

import (
	"context"
	"io"
	"log/slog"
	"net/http/httptest"
	"testing"
	"time"

	ws "github.com/coder/websocket"
)

func TestFeedClosesOnInboundData(t *testing.T) {
	hub := NewHub(slog.New(slog.NewTextHandler(io.Discard, nil)))
	srv := httptest.NewServer(HandleWebSocket(hub))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, srv.URL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(ws.StatusNormalClosure, "")

	if err := conn.Write(ctx, ws.MessageText, []byte("hello")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// The feed is outbound-only, so the server closes on any data frame.
	_, _, err = conn.Read(ctx)
	if err == nil {
		t.Fatal("read after sending data should fail")
	}
	if got := ws.CloseStatus(err); got != ws.StatusPolicyViolation {
		t.Fatalf("close status = %v, want %v", got, ws.StatusPolicyViolation)
	}
}
