package ui

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"
	"github.com/leapstack-labs/datagrid/internal/state"
	"github.com/leapstack-labs/datagrid/internal/ui/notifier"
	"github.com/leapstack-labs/datagrid/internal/ui/resources"
	"github.com/leapstack-labs/datagrid/pkg/datagrid"
	"github.com/starfederation/datastar-go/datastar"
)

// pageSignals are the datastar signals a page sends with its actions.
// Inputs bound per grid live under grids.<name>.
type pageSignals struct {
	Hash  string               `json:"hash"`
	Grids map[string]gridInput `json:"grids"`
}

type gridInput struct {
	Search struct {
		Column   string `json:"column"`
		Value    string `json:"value"`
		Operator string `json:"operator"`
	} `json:"search"`
	Ranges map[string]struct {
		Start string `json:"start"`
		End   string `json:"end"`
	} `json:"ranges"`
	Scroll struct {
		Top            int `json:"top"`
		DocumentHeight int `json:"documentHeight"`
		WindowHeight   int `json:"windowHeight"`
	} `json:"scroll"`
}

func (sig pageSignals) grid(name string) gridInput {
	return sig.Grids[name]
}

func (in gridInput) searchInput() datagrid.SearchInput {
	return datagrid.SearchInput{
		Column:   in.Search.Column,
		Value:    in.Search.Value,
		Operator: in.Search.Operator,
	}
}

// actionFunc runs one page action against the browser's session.
type actionFunc func(ctx context.Context, c *clientSession, r *http.Request, sig pageSignals) error

// setupRoutes configures all routes for the UI server.
func (s *Server) setupRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(s.withSession)

		r.Get("/", s.page)
		r.Get("/updates", s.updates)
		r.Post("/hash", s.action(true, s.navigate))

		r.Get("/views", s.listViews)
		r.Post("/views/{name}", s.action(false, s.saveView))
		r.Post("/views/{name}/open", s.action(false, s.openView))

		r.Route("/grids/{grid}", func(r chi.Router) {
			r.Post("/filters/{filter}", s.action(false, s.applyFilter))
			r.Post("/filters/{filter}/toggle", s.action(false, s.toggleFilter))
			r.Delete("/filters/{filter}", s.action(false, s.removeFilter))
			r.Delete("/groups/{group}", s.action(false, s.removeGroup))
			r.Post("/range/{filter}", s.action(true, s.applyRange))
			r.Post("/search", s.action(true, s.search))
			r.Post("/live", s.action(true, s.liveSearch))
			r.Post("/scroll", s.action(true, s.scroll))
			r.Post("/sort", s.action(false, s.sort))
			r.Post("/page/{page}", s.action(false, s.paginate))
			r.Post("/more", s.action(false, s.loadMore))
			r.Post("/layout", s.action(false, s.switchLayout))
			r.Post("/reset", s.action(false, s.reset))
			r.Get("/download", s.download)
		})
	})

	r.Handle("/*", resources.Handler(filepath.Dir(s.cfg.Project.Markup), s.cfg.Watch))
}

// page serves the markup document with the datastar client and the
// session's stream attached.
func (s *Server) page(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write(injectBootstrap(s.markupSource(), s.cfg.ScriptURL))
}

const bootstrapTemplate = `<script type="module" src="%s"></script>
<div id="datagrid" data-signals="{hash: ''}" ` +
	`data-init="@get('/updates?hash=' + encodeURIComponent(location.hash))" ` +
	`data-effect="$hash && ('#' + $hash) !== location.hash && history.replaceState(null, '', '#' + $hash)" ` +
	`data-on:hashchange__window="$hash = location.hash.slice(1); @post('/hash')"></div>
`

// injectBootstrap inserts the client before the closing body tag, or
// appends it to documents without one.
func injectBootstrap(src []byte, scriptURL string) []byte {
	boot := fmt.Sprintf(bootstrapTemplate, html.EscapeString(scriptURL))

	i := bytes.LastIndex(bytes.ToLower(src), []byte("</body>"))
	if i < 0 {
		return append(bytes.Clone(src), boot...)
	}
	out := make([]byte, 0, len(src)+len(boot))
	out = append(out, src[:i]...)
	out = append(out, boot...)
	return append(out, src[i:]...)
}

// updates streams the session's rendered layouts and fragment changes
// until the page goes away, the markup reloads or the server stops.
func (s *Server) updates(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r)

	events := s.notifier.Subscribe()
	defer s.notifier.Unsubscribe(events)

	sse := datastar.NewSSE(w, r)
	if err := c.connect(s.baseContext(), r.URL.Query().Get("hash")); err != nil {
		s.logger.Warn("failed to start session", "session", c.id, "error", err)
		_ = sse.ConsoleError(err)
	}

	for {
		select {
		case <-r.Context().Done():
			return

		case <-c.outbox.Ready():
			for _, p := range c.outbox.Drain() {
				if err := p.send(sse); err != nil {
					s.logger.Debug("stream closed", "session", c.id, "error", err)
					return
				}
			}

		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case notifier.KindReload:
				_ = sse.ExecuteScript("window.location.reload()")
				return
			case notifier.KindShutdown:
				return
			}
		}
	}
}

// action wraps an actionFunc. Signals are read before the response
// stream opens; errors are reported to the browser console.
func (s *Server) action(withSignals bool, fn actionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := sessionFrom(r)

		var sig pageSignals
		var sigErr error
		if withSignals {
			sigErr = datastar.ReadSignals(r, &sig)
		}

		sse := datastar.NewSSE(w, r)
		if sigErr != nil {
			_ = sse.ConsoleError(fmt.Errorf("read signals: %w", sigErr))
			return
		}
		if err := fn(r.Context(), c, r, sig); err != nil {
			s.logger.Warn("grid action failed", "path", r.URL.Path, "session", c.id, "error", err)
			_ = sse.ConsoleError(err)
		}
	}
}

// navigate routes a fragment typed into the address bar.
func (s *Server) navigate(_ context.Context, c *clientSession, _ *http.Request, sig pageSignals) error {
	target := datagrid.NewMemoryRouter(s.cfg.Project.URL.Base, sig.Hash).Fragment()
	if target == c.router.Fragment() {
		return nil
	}
	c.router.Navigate(sig.Hash, true)
	return nil
}

func (s *Server) applyFilter(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	return c.engine.Filter(ctx, chi.URLParam(r, "grid"), chi.URLParam(r, "filter"))
}

func (s *Server) toggleFilter(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	return c.engine.Toggle(ctx, chi.URLParam(r, "grid"), chi.URLParam(r, "filter"))
}

func (s *Server) removeFilter(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	g, err := c.engine.Grid(chi.URLParam(r, "grid"))
	if err != nil {
		return err
	}
	return g.ResetFilter(ctx, chi.URLParam(r, "filter"))
}

func (s *Server) removeGroup(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	g, err := c.engine.Grid(chi.URLParam(r, "grid"))
	if err != nil {
		return err
	}
	return g.RemoveGroup(ctx, chi.URLParam(r, "group"))
}

func (s *Server) applyRange(ctx context.Context, c *clientSession, r *http.Request, sig pageSignals) error {
	grid, name := chi.URLParam(r, "grid"), chi.URLParam(r, "filter")
	in := sig.grid(grid).Ranges[name]
	return c.engine.Range(ctx, grid, name, in.Start, in.End)
}

func (s *Server) search(ctx context.Context, c *clientSession, r *http.Request, sig pageSignals) error {
	grid := chi.URLParam(r, "grid")
	return c.engine.Search(ctx, grid, sig.grid(grid).searchInput())
}

func (s *Server) liveSearch(ctx context.Context, c *clientSession, r *http.Request, sig pageSignals) error {
	grid := chi.URLParam(r, "grid")
	g, err := c.engine.Grid(grid)
	if err != nil {
		return err
	}
	form, _ := c.engine.Document().SearchForm(g.Name())
	g.LiveSearch(ctx, form, sig.grid(grid).searchInput())
	return nil
}

func (s *Server) scroll(ctx context.Context, c *clientSession, r *http.Request, sig pageSignals) error {
	grid := chi.URLParam(r, "grid")
	g, err := c.engine.Grid(grid)
	if err != nil {
		return err
	}
	in := sig.grid(grid).Scroll
	return g.Scroll(ctx, datagrid.ScrollPosition{
		Top:            in.Top,
		DocumentHeight: in.DocumentHeight,
		WindowHeight:   in.WindowHeight,
	})
}

// sort handles a sort control: ?column=name&dir=asc|desc&multi=true.
func (s *Server) sort(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	q := r.URL.Query()
	column := q.Get("column")
	if column == "" {
		return errors.New("sort: column is required")
	}
	multi, _ := strconv.ParseBool(q.Get("multi"))
	return c.engine.Sort(ctx, chi.URLParam(r, "grid"), column, datagrid.ParseDirection(q.Get("dir")), multi)
}

func (s *Server) paginate(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	return c.engine.Page(ctx, chi.URLParam(r, "grid"), chi.URLParam(r, "page"))
}

func (s *Server) loadMore(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	g, err := c.engine.Grid(chi.URLParam(r, "grid"))
	if err != nil {
		return err
	}
	return g.LoadMore(ctx)
}

// switchLayout handles a layout control: ?spec=layout:template.
func (s *Server) switchLayout(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	g, err := c.engine.Grid(chi.URLParam(r, "grid"))
	if err != nil {
		return err
	}
	return g.SwitchLayout(ctx, r.URL.Query().Get("spec"))
}

func (s *Server) reset(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	return c.engine.Reset(ctx, chi.URLParam(r, "grid"))
}

// download redirects to the grid's export URL for ?format=.
func (s *Server) download(w http.ResponseWriter, r *http.Request) {
	c := sessionFrom(r)
	g, err := c.engine.Grid(chi.URLParam(r, "grid"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "csv"
	}
	target, err := s.downloadURL(g, format)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	http.Redirect(w, r, target, http.StatusFound)
}

func (s *Server) listViews(w http.ResponseWriter, r *http.Request) {
	views := []state.View{}
	if s.cfg.Store != nil {
		stored, err := s.cfg.Store.ListViews(r.Context())
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		views = append(views, stored...)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(views); err != nil {
		s.logger.Warn("failed to encode views", "error", err)
	}
}

// saveView stores the session's fragment: ?note= adds a note.
func (s *Server) saveView(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	_, err := c.engine.SaveView(ctx, chi.URLParam(r, "name"), r.URL.Query().Get("note"))
	return err
}

func (s *Server) openView(ctx context.Context, c *clientSession, r *http.Request, _ pageSignals) error {
	_, err := c.engine.OpenView(ctx, chi.URLParam(r, "name"))
	return err
}
