package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/DoyleJ11/secret-hitler-backend/internal/engine"
	"github.com/DoyleJ11/secret-hitler-backend/internal/hub"
	"github.com/DoyleJ11/secret-hitler-backend/internal/lobby"
	"github.com/DoyleJ11/secret-hitler-backend/internal/types"
)

type Options struct {
	OutboxSize  int
	ReadTimeout time.Duration
	// OriginPatterns is passed to websocket.Accept; empty means same origin only.
	OriginPatterns []string
}

// Handler upgrades to a websocket for one seat in the game named by ?code=.
// The connection gets a fresh player id and is joined to the game.
func Handler(h *hub.Hub, logger *zap.Logger, opts Options) http.HandlerFunc {
	if opts.OutboxSize <= 0 {
		opts.OutboxSize = 8
	}
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 5 * time.Minute
	}

	return func(w http.ResponseWriter, r *http.Request) {
		code := r.URL.Query().Get("code")
		if code == "" {
			http.Error(w, "missing code", http.StatusBadRequest)
			return
		}

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: opts.OriginPatterns,
		})
		if err != nil {
			logger.Warn("websocket accept failed", zap.Error(err))
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		playerID := uuid.NewString()
		log := logger.With(zap.String("code", code), zap.String("player_id", playerID))

		if err := writeJSON(r.Context(), conn, types.ServerMessage{Type: types.TypeWelcome, PlayerID: playerID}); err != nil {
			log.Debug("welcome write failed", zap.Error(err))
			return
		}

		out := make(chan lobby.Snapshot, opts.OutboxSize)
		if !lb.Send(lobby.Join{ClientID: playerID, Outbox: out}) {
			return
		}
		defer lb.Send(lobby.Leave{ClientID: playerID})
		lb.Send(lobby.FromClient{ClientID: playerID, Msg: engine.PlayerJoin{PlayerID: playerID}})
		log.Info("player connected")

		// Writer goroutine
		writeCtx, writeCancel := context.WithCancel(r.Context())
		defer writeCancel()
		go func() {
			for snap := range out {
				msg := types.ServerMessage{Type: types.TypeStateSnapshot, Version: snap.Version, State: &snap.State}
				if err := writeJSON(writeCtx, conn, msg); err != nil {
					log.Debug("snapshot write failed", zap.Error(err))
					return
				}
			}
			// Lobby closed our outbox: it shut down or dropped us as too slow.
			conn.Close(websocket.StatusGoingAway, "game closed")
		}()

		// Reader loop
		for {
			ctx, cancel := context.WithTimeout(r.Context(), opts.ReadTimeout)
			_, data, err := conn.Read(ctx)
			cancel()
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
					log.Info("player disconnected")
				default:
					log.Debug("websocket read ended", zap.Error(err))
				}
				return
			}

			var cm types.ClientMessage
			if err := json.Unmarshal(data, &cm); err != nil {
				writeError(r.Context(), conn, "bad json")
				continue
			}

			msg, err := types.ToEngineMessage(bindPlayer(cm, playerID))
			if err != nil {
				writeError(r.Context(), conn, err.Error())
				continue
			}

			if !lb.Send(lobby.FromClient{ClientID: playerID, Msg: msg}) {
				return
			}
		}
	}
}

// bindPlayer pins messages a player sends about themself to the
// connection's own id. Nominations keep the id the client chose.
func bindPlayer(m types.ClientMessage, playerID string) types.ClientMessage {
	switch engine.MessageType(m.Type) {
	case engine.MsgPlayerJoin, engine.MsgUpdatePlayerName, engine.MsgRevealRole, engine.MsgVoteOnTicket:
		m.Body.PlayerID = playerID
	}
	return m
}

func writeJSON(ctx context.Context, conn *websocket.Conn, msg types.ServerMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, payload)
}

func writeError(ctx context.Context, conn *websocket.Conn, reason string) {
	_ = writeJSON(ctx, conn, types.ServerMessage{Type: types.TypeError, Error: reason})
}
