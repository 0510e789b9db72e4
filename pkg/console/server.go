// Package console implements the operator console transport: the
// subscription broadcaster (C9) and the operator command handler (C10).
// A chi router exposes a websocket upgrade endpoint and a health check;
// gorilla/websocket carries the bidirectional session protocol of
// spec.md §6, with an optional Redis Pub/Sub relay so more than one
// console front-end process can share the same broadcast stream.
package console

import (
	"crypto/subtle"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/depreview/reviewbot/pkg/engine"
	"github.com/depreview/reviewbot/pkg/manifest"
	"github.com/depreview/reviewbot/pkg/pkgcache"
	"github.com/depreview/reviewbot/pkg/version"
)

const (
	writeTimeout = 10 * time.Second
	sendBuffer   = 32
)

// Engine is the subset of *engine.Engine the console drives: command
// submission, client-set bookkeeping, and state queries routed through the
// run loop's single-writer BackendState.
type Engine interface {
	Submit(cmd engine.Command)
	RegisterClient(id string)
	UnregisterClient(id string)
	Query(fn engine.SnapshotFunc) any
}

// Server owns the set of connected, authenticated operator sessions and
// fans state-change broadcasts out to them over websocket.
type Server struct {
	eng        Engine
	secret     []byte
	ignoreList []string
	logger     *log.Logger

	upgrader websocket.Upgrader

	mu      sync.Mutex
	clients map[string]*sessionClient

	relay *redisRelay
}

type sessionClient struct {
	id            string
	conn          *websocket.Conn
	send          chan envelope
	authenticated bool
}

// NewServer builds a Server. redisAddr, when non-empty, enables the
// multi-instance Pub/Sub relay (spec.md §6 NEW); an empty address leaves
// the broadcaster purely in-process.
func NewServer(eng Engine, secret string, ignoreList []string, redisAddr string, logger *log.Logger) *Server {
	s := &Server{
		eng:        eng,
		secret:     []byte(secret),
		ignoreList: ignoreList,
		logger:     logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients: make(map[string]*sessionClient),
	}
	if redisAddr != "" {
		s.relay = newRedisRelay(redisAddr, s.fanoutLocal, logger)
	}
	return s
}

// SetEngine attaches the engine this server drives. Server and Engine are
// constructed independently (the engine needs a Broadcaster, the console
// needs an Engine) and wired together once both exist, before either is
// started.
func (s *Server) SetEngine(eng Engine) {
	s.eng = eng
}

// Close releases the Redis relay, if one is running.
func (s *Server) Close() error {
	if s.relay != nil {
		return s.relay.close()
	}
	return nil
}

// Router mounts the console's HTTP surface: a websocket upgrade endpoint
// and a liveness check, per spec.md §6 NEW.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Get("/ws", s.handleWS)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return r
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "err", err)
		return
	}

	id := uuid.NewString()
	client := &sessionClient{id: id, conn: conn, send: make(chan envelope, sendBuffer)}

	s.eng.RegisterClient(id)
	go s.writePump(client)
	s.readPump(client)

	s.mu.Lock()
	delete(s.clients, id)
	s.mu.Unlock()
	s.eng.UnregisterClient(id)
	close(client.send)
	conn.Close()
}

func (s *Server) readPump(client *sessionClient) {
	for {
		var env envelope
		if err := client.conn.ReadJSON(&env); err != nil {
			return
		}

		cmd, password, isLogin, err := decodeCommand(env)
		if err != nil {
			s.logger.Debug("console: malformed message", "err", err)
			continue
		}

		if isLogin {
			s.handleLogin(client, password)
			continue
		}

		// Unauthenticated sessions see every other command as a no-op
		// (spec.md §4.9).
		if !client.authenticated {
			continue
		}
		s.eng.Submit(cmd)
	}
}

func (s *Server) handleLogin(client *sessionClient, password string) {
	if subtle.ConstantTimeCompare([]byte(password), s.secret) != 1 {
		return
	}
	client.authenticated = true

	s.mu.Lock()
	s.clients[client.id] = client
	s.mu.Unlock()

	env, err := encodeEnvelope("FirstUpdate", firstUpdatePayload{
		Snapshot:   s.snapshot(),
		IgnoreList: s.ignoreList,
	})
	if err != nil {
		return
	}
	client.send <- env
}

func (s *Server) writePump(client *sessionClient) {
	for env := range client.send {
		client.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := client.conn.WriteJSON(env); err != nil {
			return
		}
	}
}

// snapshot projects the entire cache into the wire format, dropping
// Pending records (spec.md §4.9: "clients only see records from Fetched
// onward"). It runs via Query so the projection itself executes on the
// run-loop goroutine, never racing the engine's own cache mutations.
func (s *Server) snapshot() map[string][]versionedRecord {
	result := s.eng.Query(func(state *engine.BackendState) any {
		out := make(map[string][]versionedRecord)
		state.Cache.All()(func(name manifest.PackageName, v version.Version, rec pkgcache.PackageRecord) bool {
			proj, ok := projectRecord(v.String(), rec)
			if ok {
				out[name.String()] = append(out[name.String()], toVersioned(proj))
			}
			return true
		})
		return out
	})
	return result.(map[string][]versionedRecord)
}

// Broadcast implements engine.Broadcaster: it projects rec and fans the
// delta out to every authenticated local session, and (if configured)
// publishes it to the Redis relay for other console processes.
func (s *Server) Broadcast(name manifest.PackageName, v version.Version, rec pkgcache.PackageRecord) {
	proj, ok := projectRecord(v.String(), rec)
	if !ok {
		return
	}
	delta := map[string][]versionedRecord{name.String(): {toVersioned(proj)}}

	if s.relay != nil {
		// The relay's own subscription loop delivers this process's deltas
		// back to fanoutLocal, same as every other subscriber's.
		s.relay.publish(delta)
		return
	}
	s.fanoutLocal(delta)
}

func (s *Server) fanoutLocal(delta map[string][]versionedRecord) {
	env, err := encodeEnvelope("Updates", updatesPayload{Delta: delta})
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.clients {
		if !c.authenticated {
			continue
		}
		select {
		case c.send <- env:
		default:
			s.logger.Warn("console: dropping broadcast, client send buffer full", "client", c.id)
		}
	}
}
