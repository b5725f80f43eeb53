package hub

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/secret-hitler-backend/internal/engine"
	"github.com/DoyleJ11/secret-hitler-backend/internal/lobby"
	"github.com/DoyleJ11/secret-hitler-backend/internal/store"
)

type HubMsg interface{ isHubMsg() }

type CreateLobby struct {
	Code  string
	State engine.Game
	Reply chan *lobby.Lobby
}

// GetLobby replies nil when the code is unknown both in memory and in the
// store.
type GetLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

// EnsureLobby deals a fresh game if no lobby exists for Code.
type EnsureLobby struct {
	Code  string
	Reply chan *lobby.Lobby
}

type RemoveLobby struct {
	Code string
}

type ShutdownHub struct{}

func (CreateLobby) isHubMsg() {}
func (GetLobby) isHubMsg()    {}
func (EnsureLobby) isHubMsg() {}
func (RemoveLobby) isHubMsg() {}
func (ShutdownHub) isHubMsg() {}

type Options struct {
	Store        store.Store
	Logger       *zap.Logger
	TickInterval time.Duration
	InboxSize    int
	Clock        func() time.Time
	NewRNG       func() engine.RNG
}

type Hub struct {
	inbox   chan HubMsg
	lobbies map[string]*lobby.Lobby
	opts    Options
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewHub(parent context.Context, opts Options) *Hub {
	ctx, cancel := context.WithCancel(parent)
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.NewRNG == nil {
		opts.NewRNG = func() engine.RNG { return engine.NewRNG(rand.Uint64()) }
	}

	h := &Hub{
		inbox:   make(chan HubMsg, 64),
		lobbies: make(map[string]*lobby.Lobby),
		opts:    opts,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	go h.loop()
	return h
}

func (h *Hub) Inbox() chan<- HubMsg { return h.inbox }

// Done is closed once the hub loop has exited.
func (h *Hub) Done() <-chan struct{} { return h.done }

func (h *Hub) loop() {
	defer close(h.done)
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case CreateLobby:
				if lb := h.live(msg.Code); lb != nil {
					msg.Reply <- lb
					break
				}
				msg.Reply <- h.open(msg.Code, msg.State, 0, h.opts.NewRNG())

			case GetLobby:
				if lb := h.live(msg.Code); lb != nil {
					msg.Reply <- lb
					break
				}
				msg.Reply <- h.restore(msg.Code) // May be nil

			case EnsureLobby:
				if lb := h.live(msg.Code); lb != nil {
					msg.Reply <- lb
					break
				}
				rng := h.opts.NewRNG()
				msg.Reply <- h.open(msg.Code, engine.FreshGame(h.opts.Clock(), rng), 0, rng)

			case RemoveLobby:
				if lb := h.lobbies[msg.Code]; lb != nil {
					lb.Send(lobby.Shutdown{})
					delete(h.lobbies, msg.Code)
				}

			case ShutdownHub:
				h.shutdown()
				return
			}
		}
	}
}

// live returns the running lobby for code, forgetting one that has stopped
// on its own.
func (h *Hub) live(code string) *lobby.Lobby {
	lb := h.lobbies[code]
	if lb == nil {
		return nil
	}
	select {
	case <-lb.Done():
		delete(h.lobbies, code)
		h.opts.Logger.Info("lobby closed", zap.String("code", code))
		return nil
	default:
		return lb
	}
}

func (h *Hub) open(code string, state engine.Game, version int, rng engine.RNG) *lobby.Lobby {
	lb := lobby.NewLobby(h.ctx, state, lobby.Options{
		Code:         code,
		RNG:          rng,
		Clock:        h.opts.Clock,
		TickInterval: h.opts.TickInterval,
		InboxSize:    h.opts.InboxSize,
		Store:        h.opts.Store,
		Logger:       h.opts.Logger,
		Version:      version,
	})
	h.lobbies[code] = lb
	h.opts.Logger.Info("lobby opened", zap.String("code", code), zap.Int("version", version))
	return lb
}

func (h *Hub) restore(code string) *lobby.Lobby {
	if h.opts.Store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(h.ctx, 2*time.Second)
	defer cancel()

	rec, err := h.opts.Store.Load(ctx, code)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		h.opts.Logger.Error("restoring lobby", zap.String("code", code), zap.Error(err))
		return nil
	}
	return h.open(code, rec.Game, rec.Version, h.opts.NewRNG())
}

func (h *Hub) shutdown() {
	for _, lb := range h.lobbies {
		lb.Send(lobby.Shutdown{})
	}
	clear(h.lobbies)
	h.cancel()
}
