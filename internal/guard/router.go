package guard

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"consola.app/internal/notify"
	"consola.app/internal/session"
)

var ErrUnknownRoute = errors.New("guard: unknown route")

// StateSource exposes the current session snapshot.
type StateSource interface {
	Current() session.State
}

// Decision is the outcome of a navigation attempt. When Allowed is false,
// Redirect holds the location the guards sent the user to instead.
type Decision struct {
	Allowed  bool
	Route    Route
	Redirect Location
}

// Router runs the guard chain for console navigation.
type Router struct {
	Routes   []Route
	Source   StateSource
	Nav      *History
	Notifier notify.Notifier
}

// NewRouter builds a Router over the default route table.
func NewRouter(src StateSource, notifier notify.Notifier) *Router {
	return &Router{
		Routes:   DefaultRoutes(),
		Source:   src,
		Nav:      NewHistory(),
		Notifier: notifier,
	}
}

// Resolve finds the route registered for path, ignoring any query string
// and trailing slash.
func (r *Router) Resolve(path string) (Route, error) {
	p := path
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if p != "/" {
		p = strings.TrimSuffix(p, "/")
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	for _, rt := range r.Routes {
		if rt.Path == p {
			return rt, nil
		}
	}
	return Route{}, fmt.Errorf("%w: %s", ErrUnknownRoute, path)
}

// Navigate attempts to enter target. The session snapshot is read once so
// that every guard in the chain sees the same state.
func (r *Router) Navigate(target string) (Decision, error) {
	rt, err := r.Resolve(target)
	if err != nil {
		return Decision{}, err
	}
	st := r.Source.Current()

	var allowed bool
	switch {
	case rt.Public:
		allowed = Public(st, r.Nav)
	case len(rt.Permission) > 0:
		allowed = Permission(st, rt, target, r.Nav, r.Notifier)
	default:
		allowed = Authenticated(st, r.Nav)
	}
	if !allowed {
		return Decision{Route: rt, Redirect: r.Nav.Current()}, nil
	}
	r.Nav.Navigate(rt.Path, nil)
	return Decision{Allowed: true, Route: rt}, nil
}

// Visible returns the routes the given session could enter, for menus.
func (r *Router) Visible(st session.State) []Route {
	var out []Route
	for _, rt := range r.Routes {
		if rt.Public {
			continue
		}
		if st.IsAuthenticated() && st.HasAll(rt.Permission...) {
			out = append(out, rt)
		}
	}
	return out
}

// Location is a navigation target.
type Location struct {
	Path  string
	Query url.Values
}

// String renders the location as a relative URL.
func (l Location) String() string {
	if len(l.Query) == 0 {
		return l.Path
	}
	return l.Path + "?" + l.Query.Encode()
}

// History records navigations. It satisfies both the guard and session
// navigator interfaces.
type History struct {
	mu      sync.Mutex
	entries []Location
}

func NewHistory() *History {
	return &History{}
}

func (h *History) Navigate(path string, query url.Values) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var q url.Values
	if len(query) > 0 {
		q = make(url.Values, len(query))
		for k, v := range query {
			q[k] = append([]string(nil), v...)
		}
	}
	h.entries = append(h.entries, Location{Path: path, Query: q})
}

// Current returns the latest location, or the entry route when nothing was visited.
func (h *History) Current() Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return Location{Path: session.EntryRoute}
	}
	return h.entries[len(h.entries)-1]
}

// Entries returns every recorded location in order.
func (h *History) Entries() []Location {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]Location(nil), h.entries...)
}
