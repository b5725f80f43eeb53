package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/DoyleJ11/secret-hitler-backend/internal/engine"
	"github.com/DoyleJ11/secret-hitler-backend/internal/hub"
	"github.com/DoyleJ11/secret-hitler-backend/internal/lobby"
	"github.com/DoyleJ11/secret-hitler-backend/internal/types"
)

func startServer(t *testing.T) (*httptest.Server, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	h := hub.NewHub(ctx, hub.Options{NewRNG: func() engine.RNG { return engine.NewRNG(1) }})
	reply := make(chan *lobby.Lobby, 1)
	h.Inbox() <- hub.EnsureLobby{Code: "WS0001", Reply: reply}
	require.NotNil(t, <-reply)

	srv := httptest.NewServer(Handler(h, zap.NewNop(), Options{}))
	t.Cleanup(srv.Close)
	return srv, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.CloseNow() })
	return conn
}

// readUntil skips server messages until one of the wanted type arrives.
func readUntil(t *testing.T, conn *websocket.Conn, msgType string, match func(types.ServerMessage) bool) types.ServerMessage {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		_, data, err := conn.Read(ctx)
		require.NoError(t, err)
		var msg types.ServerMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		if msg.Type == msgType && (match == nil || match(msg)) {
			return msg
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, payload string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, conn.Write(ctx, websocket.MessageText, []byte(payload)))
}

func TestHandler_JoinAndRename(t *testing.T) {
	_, base := startServer(t)
	conn := dial(t, base+"?code=WS0001")

	welcome := readUntil(t, conn, types.TypeWelcome, nil)
	require.NotEmpty(t, welcome.PlayerID)

	joined := readUntil(t, conn, types.TypeStateSnapshot, func(m types.ServerMessage) bool {
		return len(m.State.Players) == 1
	})
	require.Equal(t, welcome.PlayerID, joined.State.Players[0].ID)

	// playerId in the body is ignored for self actions
	send(t, conn, `{"type":"UPDATE_PLAYER_NAME","body":{"playerId":"someone-else","name":"Ada"}}`)
	renamed := readUntil(t, conn, types.TypeStateSnapshot, func(m types.ServerMessage) bool {
		return m.State.Players[0].Name == "Ada"
	})
	require.Greater(t, renamed.Version, joined.Version)
}

func TestHandler_RejectsBadMessages(t *testing.T) {
	_, base := startServer(t)
	conn := dial(t, base+"?code=WS0001")
	readUntil(t, conn, types.TypeWelcome, nil)

	send(t, conn, `not json`)
	require.Equal(t, "bad json", readUntil(t, conn, types.TypeError, nil).Error)

	send(t, conn, `{"type":"VOTE_ON_TICKET","body":{"vote":"maybe"}}`)
	require.Contains(t, readUntil(t, conn, types.TypeError, nil).Error, "ja or nein")
}

func TestHandler_UnknownGame(t *testing.T) {
	srv, _ := startServer(t)

	resp, err := http.Get(srv.URL + "?code=NOPE00")
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestBindPlayer(t *testing.T) {
	cases := []struct {
		msgType string
		want    string
	}{
		{"VOTE_ON_TICKET", "me"},
		{"REVEAL_ROLE", "me"},
		{"SELECT_CHANCELLOR_CANDIDATE", "them"},
	}
	for _, tc := range cases {
		got := bindPlayer(types.ClientMessage{Type: tc.msgType, Body: types.MessageBody{PlayerID: "them"}}, "me")
		require.Equal(t, tc.want, got.Body.PlayerID, tc.msgType)
	}
}
