package lobby

import (
	"context"
	"reflect"
	"time"

	"go.uber.org/zap"

	"github.com/DoyleJ11/secret-hitler-backend/internal/engine"
	"github.com/DoyleJ11/secret-hitler-backend/internal/store"
)

type Msg interface{ isLobbyMsg() }

type FromClient struct {
	ClientID string
	Msg      engine.Message
}

func (FromClient) isLobbyMsg() {}

type Join struct {
	ClientID string
	Outbox   chan Snapshot // where this client wants to receive snapshots
}

func (Join) isLobbyMsg() {}

type Leave struct{ ClientID string }

func (Leave) isLobbyMsg() {}

type Shutdown struct{}

func (Shutdown) isLobbyMsg() {}

type GetState struct {
	Reply chan View
}

func (GetState) isLobbyMsg() {}

// Export fields
type Snapshot struct {
	Version int
	State   engine.Game
}

type View struct {
	Code       string
	Version    int
	NumClients int
	State      engine.Game
}

type Options struct {
	Code string
	RNG  engine.RNG
	// Clock supplies the now passed to the engine. Defaults to time.Now.
	Clock func() time.Time
	// TickInterval is how often CLOCK_TICK is delivered. Zero disables the clock.
	TickInterval time.Duration
	InboxSize    int
	Store        store.Store
	Logger       *zap.Logger
	// Version to resume from when restoring a stored game.
	Version int
}

type Lobby struct {
	inbox   chan Msg
	state   engine.Game
	version int
	clients map[string]chan Snapshot
	opts    Options
	logger  *zap.Logger
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewLobby(parent context.Context, initial engine.Game, opts Options) *Lobby {
	ctx, cancel := context.WithCancel(parent)

	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if opts.RNG == nil {
		opts.RNG = engine.NewRNG(uint64(time.Now().UnixNano()))
	}
	if opts.InboxSize <= 0 {
		opts.InboxSize = 64 // Small buffer
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	l := &Lobby{
		inbox:   make(chan Msg, opts.InboxSize),
		state:   initial,
		version: opts.Version,
		clients: make(map[string]chan Snapshot),
		opts:    opts,
		logger:  opts.Logger.With(zap.String("code", opts.Code)),
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
	}

	go l.loop()
	return l
}

func (l *Lobby) loop() {
	defer close(l.done)

	var tick <-chan time.Time
	if l.opts.TickInterval > 0 {
		ticker := time.NewTicker(l.opts.TickInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-l.ctx.Done():
			l.shutdown()
			return

		case <-tick:
			l.apply("", engine.ClockTick{})

		case m := <-l.inbox:
			switch msg := m.(type) {
			case Join:
				// Register client + send current snapshot immediately
				l.clients[msg.ClientID] = msg.Outbox
				msg.Outbox <- Snapshot{Version: l.version, State: l.state}
				l.logger.Debug("client joined", zap.String("client_id", msg.ClientID), zap.Int("clients", len(l.clients)))

			case Leave:
				if ch, ok := l.clients[msg.ClientID]; ok {
					close(ch) // wakes the writer ranging over it
					delete(l.clients, msg.ClientID)
					l.logger.Debug("client left", zap.String("client_id", msg.ClientID))
				}
				// The last client leaving a finished game closes the lobby.
				if len(l.clients) == 0 && engine.IsOver(l.state) {
					l.logger.Info("finished game abandoned, closing")
					l.shutdown()
					return
				}

			case FromClient:
				l.apply(msg.ClientID, msg.Msg)

			case GetState:
				// reflect internal state without data races
				msg.Reply <- View{
					Code:       l.opts.Code,
					Version:    l.version,
					NumClients: len(l.clients),
					State:      l.state,
				}

			case Shutdown:
				l.shutdown()
				return
			}
		}
	}
}

// apply runs one message through the engine. Only a changed snapshot bumps
// the version, is persisted and is broadcast.
func (l *Lobby) apply(clientID string, msg engine.Message) {
	next, err := engine.Update(l.state, msg, l.opts.Clock(), l.opts.RNG)
	if err != nil {
		l.logger.Warn("message rejected",
			zap.String("client_id", clientID),
			zap.String("type", string(msg.Type())),
			zap.Error(err),
		)
		return
	}
	if reflect.DeepEqual(next, l.state) {
		return
	}

	prevPhase := l.state.Phase.Name
	l.state = next
	l.version++
	if next.Phase.Name != prevPhase {
		l.logger.Info("phase changed",
			zap.String("from", string(prevPhase)),
			zap.String("to", string(next.Phase.Name)),
			zap.Int("version", l.version),
		)
	}

	l.persist()
	l.broadcast(Snapshot{Version: l.version, State: l.state})
}

func (l *Lobby) persist() {
	if l.opts.Store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(l.ctx, 2*time.Second)
	defer cancel()
	rec := store.Record{Code: l.opts.Code, Version: l.version, Game: l.state}
	if err := l.opts.Store.Save(ctx, rec); err != nil {
		l.logger.Error("persisting snapshot", zap.Int("version", l.version), zap.Error(err))
	}
}

func (l *Lobby) shutdown() {
	for id, ch := range l.clients {
		close(ch) // Tell client no more snapshots
		delete(l.clients, id)
	}
	l.cancel()
}

func (l *Lobby) broadcast(snap Snapshot) {
	for id, ch := range l.clients {
		select {
		case ch <- snap:
			//ok
		default:
			// Client is slow/full - drop them.
			close(ch)
			delete(l.clients, id)
			l.logger.Warn("dropped slow client", zap.String("client_id", id))
		}
	}
}

// Expose the inbox so tests or WS layer can send messages.
func (l *Lobby) Inbox() chan<- Msg { return l.inbox }

// Done is closed once the actor goroutine has exited.
func (l *Lobby) Done() <-chan struct{} { return l.done }

// Send delivers m unless the lobby has already shut down.
func (l *Lobby) Send(m Msg) bool {
	select {
	case <-l.done:
		return false
	default:
	}
	select {
	case l.inbox <- m:
		return true
	case <-l.done:
		return false
	}
}
