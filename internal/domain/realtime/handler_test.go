package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dsatschool/delta-api/internal/domain/delta"
	"github.com/dsatschool/delta-api/internal/middleware"
	"github.com/dsatschool/delta-api/internal/pkg/jwt"
)

func newServer(t *testing.T) (*httptest.Server, *Hub, *jwt.Service) {
	t.Helper()
	hub := NewHub(nil)
	go hub.Run()
	t.Cleanup(hub.Shutdown)

	jwtService := jwt.NewService("test-secret", time.Minute, time.Hour)
	r := chi.NewRouter()
	r.Mount("/ws", NewHandler(hub, nil).Routes(middleware.Auth(jwtService)))

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, hub, jwtService
}

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestWalletSocketRequiresToken(t *testing.T) {
	srv, _, _ := newServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv.URL)+"/ws/wallet", nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestWalletSocketReceivesEvents(t *testing.T) {
	srv, hub, j := newServer(t)
	userID := uuid.New()
	tok, err := j.GenerateAccessToken(userID, middleware.RoleStudent, false)
	require.NoError(t, err)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL)+"/ws/wallet?token="+tok, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Publish(context.Background(), creditEvent(userID, "42")))
	require.NoError(t, hub.Publish(context.Background(), creditEvent(uuid.New(), "1")))

	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)

	var event delta.WalletEvent
	require.NoError(t, json.Unmarshal(msg, &event))
	assert.Equal(t, userID, event.UserID)
	assert.Equal(t, "42.00 Δ", event.FormattedBalance)

	conn.Close()
	assert.Eventually(t, func() bool { return hub.ConnectionCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
