// Package guard decides whether a console route may be entered given the
// current session, and performs the redirects when it may not.
package guard

import (
	"context"
	"net/url"
	"strings"

	"consola.app/internal/audit"
	"consola.app/internal/auth"
	"consola.app/internal/notify"
	"consola.app/internal/obs"
	"consola.app/internal/session"
)

// ReturnURLParam carries the originally requested location to the login route.
const ReturnURLParam = "returnUrl"

const (
	deniedSummary = "Acceso Denegado"
	deniedDetail  = "No tienes los permisos necesarios para acceder a esta sección."
)

// Navigator performs the redirect side effects of the guards.
type Navigator interface {
	Navigate(path string, query url.Values)
}

// Require builds a route permission requirement. All names must be held.
func Require(names ...string) []string {
	out := make([]string, 0, len(names))
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// Authenticated admits authenticated sessions and sends everyone else to the
// entry route.
func Authenticated(st session.State, nav Navigator) bool {
	if st.IsAuthenticated() {
		return true
	}
	obs.Warn("guard_unauthenticated", nil)
	nav.Navigate(session.EntryRoute, nil)
	return false
}

// Permission admits authenticated sessions holding every permission the
// route requires. Unauthenticated visitors are sent to the entry route with
// the requested target preserved; authenticated ones lacking a permission are
// notified and sent to the landing route.
func Permission(st session.State, route Route, target string, nav Navigator, notifier notify.Notifier) bool {
	if !st.IsAuthenticated() {
		q := url.Values{}
		if target != "" {
			q.Set(ReturnURLParam, target)
		}
		nav.Navigate(session.EntryRoute, q)
		return false
	}
	if len(route.Permission) == 0 || st.HasAll(route.Permission...) {
		return true
	}

	ctx := auth.ContextWithUser(context.Background(), st.Identity.ID)
	_ = audit.LogEvent(ctx, audit.EventAccessDenied, map[string]any{
		"route":    route.Path,
		"required": route.Permission,
	})
	if notifier != nil {
		notifier.Notify(notify.Notification{
			Severity: notify.SeverityError,
			Summary:  deniedSummary,
			Detail:   deniedDetail,
		})
	}
	nav.Navigate(session.LandingRoute, nil)
	return false
}

// Public admits unauthenticated visitors to public routes such as the login
// screen; authenticated sessions go straight to the landing route.
func Public(st session.State, nav Navigator) bool {
	if !st.IsAuthenticated() {
		return true
	}
	nav.Navigate(session.LandingRoute, nil)
	return false
}
