package httpapi

import (
	"crypto/rand"
	"encoding/json"
	"math/big"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/DoyleJ11/secret-hitler-backend/internal/engine"
	"github.com/DoyleJ11/secret-hitler-backend/internal/hub"
	"github.com/DoyleJ11/secret-hitler-backend/internal/lobby"
)

func GenerateCode() (string, error) {
	const charset = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789" // no ambiguous chars

	code := make([]byte, 6)
	for i := 0; i < 6; i++ {
		num, err := rand.Int(rand.Reader, big.NewInt(int64(len(charset))))
		if err != nil {
			return "", err
		}
		code[i] = charset[num.Int64()]
	}
	return string(code), nil
}

func CreateGame(h *hub.Hub, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var code string
		for {
			c, err := GenerateCode()
			if err != nil {
				logger.Error("generating code", zap.Error(err))
				http.Error(w, "failed to generate code", http.StatusInternalServerError)
				return
			}
			reply := make(chan *lobby.Lobby, 1)
			h.Inbox() <- hub.GetLobby{Code: c, Reply: reply}
			if <-reply == nil {
				code = c
				break
			}
			logger.Debug("collision on code, regenerating", zap.String("code", c))
		}

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.EnsureLobby{Code: code, Reply: reply}
		if <-reply == nil {
			http.Error(w, "failed to create game", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, struct {
			Code string `json:"code"`
		}{Code: code})
	}
}

type GameView struct {
	Code        string      `json:"code"`
	Version     int         `json:"version"`
	Clients     int         `json:"clients"`
	State       engine.Game `json:"state"`
	IsOver      bool        `json:"isOver"`
	FascistsWon bool        `json:"fascistsWon"`
	LiberalsWon bool        `json:"liberalsWon"`
	Victory     string      `json:"victory,omitempty"`
}

func GetGame(h *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		code := chi.URLParam(r, "code")

		reply := make(chan *lobby.Lobby, 1)
		h.Inbox() <- hub.GetLobby{Code: code, Reply: reply}
		lb := <-reply
		if lb == nil {
			http.Error(w, "game not found", http.StatusNotFound)
			return
		}

		views := make(chan lobby.View, 1)
		if !lb.Send(lobby.GetState{Reply: views}) {
			http.Error(w, "game closed", http.StatusGone)
			return
		}

		var v lobby.View
		select {
		case v = <-views:
		case <-time.After(2 * time.Second):
			http.Error(w, "game busy", http.StatusServiceUnavailable)
			return
		case <-r.Context().Done():
			return
		}

		writeJSON(w, http.StatusOK, GameView{
			Code:        code,
			Version:     v.Version,
			Clients:     v.NumClients,
			State:       v.State,
			IsOver:      engine.IsOver(v.State),
			FascistsWon: engine.FascistsWon(v.State),
			LiberalsWon: engine.LiberalsWon(v.State),
			Victory:     engine.ExplainVictory(v.State),
		})
	}
}

func Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
