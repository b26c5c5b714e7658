package ui

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/leapstack-labs/datagrid/internal/engine"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/internal/ui/notifier"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/leapstack-labs/datagrid/pkg/markup"
	"github.com/starfederation/datastar-go/datastar"
)

const (
	sessionName  = "datagrid"
	sessionIDKey = "id"
)

// patch is one queued update for a page: rendered layout HTML for a
// target, or a new fragment for the location hash.
type patch struct {
	Target string
	HTML   string
	Action datagrid.Action
	Hash   *string
}

func (p patch) send(sse *datastar.ServerSentEventGenerator) error {
	if p.Hash != nil {
		return sse.MarshalAndPatchSignals(map[string]any{"hash": *p.Hash})
	}
	mode := datastar.WithModeInner()
	if p.Action == datagrid.ActionAppend {
		mode = datastar.WithModeAppend()
	}
	return sse.PatchElements(p.HTML, datastar.WithSelector(p.Target), mode)
}

// sseRenderer queues rendered layouts for the page's event stream.
type sseRenderer struct {
	outbox *notifier.Outbox[patch]
}

func (r *sseRenderer) Render(_ context.Context, target, html string, action datagrid.Action) error {
	r.outbox.Push(patch{Target: target, HTML: html, Action: action})
	return nil
}

func (r *sseRenderer) Clear(_ context.Context, target string) error {
	r.outbox.Push(patch{Target: target, Action: datagrid.ActionReplace})
	return nil
}

// sseRouter keeps the session's fragment. Fragments written by the grids
// are queued as hash signals; fragments reported by the page trigger a
// dispatch.
type sseRouter struct {
	*datagrid.MemoryRouter
	base   string
	outbox *notifier.Outbox[patch]
}

func newSSERouter(base string, outbox *notifier.Outbox[patch]) *sseRouter {
	return &sseRouter{
		MemoryRouter: datagrid.NewMemoryRouter(base, ""),
		base:         strings.Trim(base, "/"),
		outbox:       outbox,
	}
}

func (r *sseRouter) Navigate(fragment string, trigger bool) {
	r.MemoryRouter.Navigate(fragment, trigger)
	if trigger {
		return
	}
	hash := r.Fragment()
	if r.base != "" {
		hash = "/" + r.base + "/" + hash
	}
	r.outbox.Push(patch{Hash: &hash})
}

// clientSession is the grid state of one browser.
type clientSession struct {
	id     string
	engine *engine.Engine
	router *sseRouter
	outbox *notifier.Outbox[patch]

	mu      sync.Mutex
	started bool
}

// connect routes the page's fragment. The first connection starts the
// manager; later ones (a reloaded page) dispatch again so the fresh page
// receives every layout.
func (c *clientSession) connect(ctx context.Context, fragment string) error {
	c.outbox.Drain()

	c.mu.Lock()
	first := !c.started
	c.started = true
	c.mu.Unlock()

	if first {
		c.router.MemoryRouter.Navigate(fragment, false)
		return c.engine.Start(ctx)
	}
	c.router.Navigate(fragment, true)
	return nil
}

func (c *clientSession) close() {
	_ = c.engine.Close()
}

// newSession builds a session over a private copy of the markup, so
// values entered into range controls stay per browser.
func (s *Server) newSession(id string) (*clientSession, error) {
	doc, err := markup.Parse(bytes.NewReader(s.markupSource()))
	if err != nil {
		return nil, err
	}

	outbox := notifier.NewOutbox[patch](0)
	router := newSSERouter(s.cfg.Project.URL.Base, outbox)

	var store state.Store
	if s.cfg.Store != nil {
		store = nopCloseStore{s.cfg.Store}
	}

	eng, err := engine.New(engine.Config{
		Project:  s.cfg.Project,
		Document: doc,
		Endpoint: s.cfg.Endpoint,
		Store:    store,
		Origin:   state.OriginUI,
		Router:   router,
		Renderer: &sseRenderer{outbox: outbox},
		Fetcher:  s.cfg.Fetcher,
		Logger:   s.logger.With("session", id),
	})
	if err != nil {
		return nil, err
	}
	return &clientSession{id: id, engine: eng, router: router, outbox: outbox}, nil
}

// nopCloseStore shares the server's store with a session engine, which
// closes its store on Close.
type nopCloseStore struct {
	state.Store
}

func (nopCloseStore) Close() error { return nil }

// registry maps session ids to sessions, creating them on first use.
type registry struct {
	mu       sync.Mutex
	sessions map[string]*clientSession
	create   func(id string) (*clientSession, error)
	logger   *slog.Logger
}

func newRegistry(create func(string) (*clientSession, error), logger *slog.Logger) *registry {
	return &registry{sessions: make(map[string]*clientSession), create: create, logger: logger}
}

func (r *registry) get(id string) (*clientSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.sessions[id]; ok {
		return c, nil
	}
	c, err := r.create(id)
	if err != nil {
		return nil, err
	}
	r.sessions[id] = c
	r.logger.Debug("session created", "session", id)
	return c, nil
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

func (r *registry) closeAll() {
	r.mu.Lock()
	sessions := r.sessions
	r.sessions = make(map[string]*clientSession)
	r.mu.Unlock()

	for _, c := range sessions {
		c.close()
	}
}

type sessionCtxKey struct{}

// withSession loads the browser's session id from its cookie, issuing a
// new one when missing, and attaches the session to the request.
func (s *Server) withSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, _ := s.sessionStore.Get(r, sessionName)
		id, _ := sess.Values[sessionIDKey].(string)
		if id == "" {
			id = uuid.NewString()
			sess.Values[sessionIDKey] = id
			if err := sess.Save(r, w); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
		}

		c, err := s.sessions.get(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionCtxKey{}, c)))
	})
}

func sessionFrom(r *http.Request) *clientSession {
	c, _ := r.Context().Value(sessionCtxKey{}).(*clientSession)
	return c
}
