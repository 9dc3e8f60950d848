package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"consola.app/internal/apiclient"
	"consola.app/internal/audit"
	"consola.app/internal/auth"
	"consola.app/internal/credstore"
	"consola.app/internal/notify"
	"consola.app/internal/obs"
)

// Well-known console routes.
const (
	EntryRoute   = "/"
	LandingRoute = "/system/dashboard"
)

const defaultLogoutTimeout = 5 * time.Second

// Backend is the auth half of the REST contract.
type Backend interface {
	Login(ctx context.Context, creds auth.Credentials) (auth.TokenResponse, error)
	Me(ctx context.Context) (auth.MeResponse, error)
	Refresh(ctx context.Context) (auth.TokenResponse, error)
	Logout(ctx context.Context, token string) error
}

// Navigator performs navigation side effects.
type Navigator interface {
	Navigate(path string, query url.Values)
}

// Service drives every auth transition of the session Store.
type Service struct {
	state         *Store
	creds         credstore.Store
	backend       Backend
	nav           Navigator
	notifier      notify.Notifier
	metrics       *obs.Metrics
	logoutTimeout time.Duration
	landing       string
	entry         string

	background sync.WaitGroup
}

// Option configures Service behavior.
type Option func(*Service)

func WithNavigator(nav Navigator) Option {
	return func(s *Service) {
		if nav != nil {
			s.nav = nav
		}
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

func WithMetrics(m *obs.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogoutTimeout bounds the best-effort backend logout call.
func WithLogoutTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.logoutTimeout = d
		}
	}
}

// WithRoutes overrides the landing and entry routes used for navigation.
func WithRoutes(landing, entry string) Option {
	return func(s *Service) {
		if landing != "" {
			s.landing = landing
		}
		if entry != "" {
			s.entry = entry
		}
	}
}

type noopNavigator struct{}

func (noopNavigator) Navigate(string, url.Values) {}

// NewService wires a Service around its collaborators.
func NewService(state *Store, creds credstore.Store, backend Backend, opts ...Option) (*Service, error) {
	if state == nil || creds == nil || backend == nil {
		return nil, errors.New("session: state, credential store and backend are required")
	}
	s := &Service{
		state:         state,
		creds:         creds,
		backend:       backend,
		nav:           noopNavigator{},
		notifier:      notify.Discard,
		logoutTimeout: defaultLogoutTimeout,
		landing:       LandingRoute,
		entry:         EntryRoute,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// State returns the Store the Service writes to.
func (s *Service) State() *Store { return s.state }

// Restore re-establishes a persisted session at startup. Without a stored
// credential it returns false without touching the network. Any failure of
// the session check clears everything.
func (s *Service) Restore(ctx context.Context) bool {
	token, err := s.creds.Token(ctx)
	if err != nil {
		obs.Warn("credential_store_read_failed", map[string]any{"error": err.Error()})
	}
	if token == "" || err != nil {
		s.clearDurable(ctx)
		s.state.reset()
		return false
	}

	s.state.begin()
	s.state.stage(token)

	id, perms, err := s.fetchIdentity(ctx)
	if err == nil && !s.state.commit(token, id, perms) {
		err = auth.NewError(auth.ErrSessionInvalid, "", errors.New("session changed during restore"))
	}
	if err != nil {
		s.clearDurable(ctx)
		s.state.reset()
		s.metrics.Transition(obs.TransitionRestoreFail)
		_ = audit.LogEvent(ctx, audit.EventSessionInvalid, map[string]any{"error": err.Error()})
		return false
	}

	s.persistIdentity(ctx, id)
	s.metrics.Transition(obs.TransitionRestore)
	_ = audit.LogEvent(auth.ContextWithUser(ctx, id.ID), audit.EventSessionRestored, map[string]any{"permissions": perms.Len()})
	return true
}

// WarmIdentity returns the persisted identity snapshot for display before
// Restore settles. It is never a source of authorization.
func (s *Service) WarmIdentity(ctx context.Context) *auth.Identity {
	id, err := s.creds.Identity(ctx)
	if err != nil {
		return nil
	}
	return id
}

// Login runs the two-phase protocol: exchange credentials for a token, then
// describe the principal with that token. Either phase failing rolls back.
func (s *Service) Login(ctx context.Context, creds auth.Credentials) (auth.Identity, error) {
	s.state.begin()

	tok, err := s.backend.Login(ctx, creds)
	if err != nil {
		return auth.Identity{}, s.loginFailed(ctx, creds.Email, classifyLogin(err))
	}
	if tok.AccessToken == "" {
		return auth.Identity{}, s.loginFailed(ctx, creds.Email,
			auth.NewError(auth.ErrMalformedResponse, "", errors.New("login response without access_token")))
	}
	if err := s.creds.SetToken(ctx, tok.AccessToken); err != nil {
		return auth.Identity{}, s.loginFailed(ctx, creds.Email, auth.NewError(auth.ErrSessionInvalid, auth.MsgLoginFailed, err))
	}
	s.state.stage(tok.AccessToken)

	id, perms, err := s.fetchIdentity(ctx)
	if err != nil {
		return auth.Identity{}, s.loginFailed(ctx, creds.Email, err)
	}
	if !s.state.commit(tok.AccessToken, id, perms) {
		return auth.Identity{}, s.loginFailed(ctx, creds.Email,
			auth.NewError(auth.ErrSessionInvalid, "", errors.New("session changed during login")))
	}

	s.persistIdentity(ctx, id)
	s.metrics.Transition(obs.TransitionLogin)
	_ = audit.LogEvent(auth.ContextWithUser(ctx, id.ID), audit.EventLoginSucceeded, map[string]any{
		"email":       id.Email,
		"permissions": perms.Names(),
	})
	s.nav.Navigate(s.landing, nil)
	return id, nil
}

func (s *Service) loginFailed(ctx context.Context, email string, err error) error {
	s.clearDurable(ctx)
	s.state.fail(auth.UserMessage(err))
	s.metrics.Transition(obs.TransitionLoginFailed)
	_ = audit.LogEvent(ctx, audit.EventLoginFailed, map[string]any{"email": email, "error": err.Error()})
	return err
}

// Logout tears the session down locally, navigates to the entry route and
// then makes a best-effort backend invalidation whose outcome is only logged.
func (s *Service) Logout(ctx context.Context) {
	prev := s.teardown(ctx)
	s.metrics.Transition(obs.TransitionLogout)
	_ = audit.LogEvent(userContext(ctx, prev), audit.EventLogout, nil)
	s.nav.Navigate(s.entry, nil)
	if prev.Token != "" {
		s.remoteLogout(ctx, prev.Token)
	}
}

// Teardown clears the session locally. It is idempotent and cheap to repeat.
func (s *Service) Teardown(ctx context.Context) {
	s.teardown(ctx)
}

// HandleRejection is the reaction to a 401/419 from the protected API. Only
// the call that actually ends an authenticated session notifies the user and
// navigates; repeated calls from interleaved responses are no-ops.
func (s *Service) HandleRejection(ctx context.Context) {
	prev := s.teardown(ctx)
	if !prev.IsAuthenticated() {
		return
	}
	s.metrics.Transition(obs.TransitionAuthRejected)
	_ = audit.LogEvent(userContext(ctx, prev), audit.EventTeardown, map[string]any{"reason": "rejected"})
	s.notifier.Notify(notify.Notification{
		Severity: notify.SeverityWarn,
		Summary:  "Sesión finalizada",
		Detail:   auth.MsgSessionExpired,
	})
	s.nav.Navigate(s.entry, nil)

	s.background.Add(1)
	go func() {
		defer s.background.Done()
		s.remoteLogout(context.WithoutCancel(ctx), prev.Token)
	}()
}

// Wait blocks until background backend invalidations started by
// HandleRejection have finished. Each is bounded by the logout timeout.
func (s *Service) Wait() {
	s.background.Wait()
}

// Refresh rotates the credential and reloads the identity, since permissions
// may change with the token. Any failure degrades to a full logout.
func (s *Service) Refresh(ctx context.Context) (auth.Identity, error) {
	if s.state.Token() == "" {
		obs.Warn("refresh_without_credential", nil)
		s.Logout(ctx)
		return auth.Identity{}, auth.ErrNoCredential
	}
	s.state.begin()

	tok, err := s.backend.Refresh(ctx)
	if err == nil && tok.AccessToken == "" {
		err = auth.NewError(auth.ErrMalformedResponse, "", errors.New("refresh response without access_token"))
	}
	if err == nil {
		if perr := s.creds.SetToken(ctx, tok.AccessToken); perr != nil {
			err = auth.NewError(auth.ErrSessionInvalid, "", perr)
		}
	}
	var (
		id    auth.Identity
		perms auth.PermissionSet
	)
	if err == nil {
		s.state.stage(tok.AccessToken)
		id, perms, err = s.fetchIdentity(ctx)
	}
	if err == nil && !s.state.commit(tok.AccessToken, id, perms) {
		err = auth.NewError(auth.ErrSessionInvalid, "", errors.New("session changed during refresh"))
	}
	if err != nil {
		err = classifyRefresh(err)
		s.Logout(ctx)
		s.state.fail(auth.UserMessage(err))
		s.metrics.Transition(obs.TransitionRefreshFail)
		_ = audit.LogEvent(ctx, audit.EventRefreshFailed, map[string]any{"error": err.Error()})
		return auth.Identity{}, err
	}

	s.persistIdentity(ctx, id)
	s.metrics.Transition(obs.TransitionRefresh)
	_ = audit.LogEvent(auth.ContextWithUser(ctx, id.ID), audit.EventTokenRefreshed, map[string]any{"permissions": perms.Len()})
	return id, nil
}

// teardown clears durable and in-memory state, durable first, and returns the replaced state.
func (s *Service) teardown(ctx context.Context) State {
	s.clearDurable(ctx)
	prev := s.state.reset()
	if prev.Token != "" {
		s.metrics.Transition(obs.TransitionTeardown)
	}
	return prev
}

func (s *Service) remoteLogout(ctx context.Context, token string) {
	ctx, cancel := context.WithTimeout(ctx, s.logoutTimeout)
	defer cancel()
	if err := s.backend.Logout(ctx, token); err != nil {
		_ = audit.LogEvent(ctx, audit.EventLogoutRemoteFail, map[string]any{"error": err.Error()})
	}
}

func (s *Service) fetchIdentity(ctx context.Context) (auth.Identity, auth.PermissionSet, error) {
	me, err := s.backend.Me(ctx)
	if err != nil {
		return auth.Identity{}, auth.PermissionSet{}, classifySessionCheck(err)
	}
	if me.Data == nil {
		return auth.Identity{}, auth.PermissionSet{},
			auth.NewError(auth.ErrMalformedResponse, "", errors.New("/auth/me response without data"))
	}
	return me.Data.Clone(), auth.FlattenMe(me), nil
}

func (s *Service) clearDurable(ctx context.Context) {
	if err := s.creds.Clear(ctx); err != nil {
		obs.Error("credential_store_clear_failed", map[string]any{"error": err.Error()})
	}
}

func (s *Service) persistIdentity(ctx context.Context, id auth.Identity) {
	if err := s.creds.SetIdentity(ctx, id); err != nil {
		obs.Warn("identity_snapshot_write_failed", map[string]any{"error": err.Error()})
	}
}

func userContext(ctx context.Context, st State) context.Context {
	if st.Identity == nil {
		return ctx
	}
	return auth.ContextWithUser(ctx, st.Identity.ID)
}

// classifyLogin maps a phase-one failure to the taxonomy, preferring backend copy.
func classifyLogin(err error) error {
	if ae, ok := apiclient.AsAPIError(err); ok {
		if ae.IsAuthRejection() {
			return auth.NewError(auth.ErrInvalidCredentials, ae.Message, err)
		}
		msg := ae.Message
		if msg == "" {
			msg = fmt.Sprintf("Error de conexión: %s (Código: %d)", statusText(ae.Status), ae.Status)
		}
		return auth.NewError(auth.ErrNetwork, msg, err)
	}
	return classifyTransport(err)
}

// classifySessionCheck maps a /auth/me failure to the taxonomy.
func classifySessionCheck(err error) error {
	if ae, ok := apiclient.AsAPIError(err); ok {
		return auth.NewError(auth.ErrSessionInvalid, ae.Message, err)
	}
	return classifyTransport(err)
}

// classifyRefresh keeps backend copy but otherwise reports an expired session.
func classifyRefresh(err error) error {
	if api, ok := apiclient.AsAPIError(err); ok && api.Message != "" {
		return auth.NewError(auth.ErrSessionInvalid, api.Message, err)
	}
	return auth.NewError(auth.ErrSessionInvalid, auth.MsgSessionExpired, err)
}

func classifyTransport(err error) error {
	var ae *auth.Error
	if errors.As(err, &ae) {
		return err
	}
	switch {
	case errors.Is(err, auth.ErrMalformedResponse):
		return auth.NewError(auth.ErrMalformedResponse, "", err)
	case errors.Is(err, auth.ErrNetwork):
		return auth.NewError(auth.ErrNetwork, "Error de conexión: "+rootCause(err), err)
	default:
		return auth.NewError(auth.ErrNetwork, "Error de conexión: "+err.Error(), err)
	}
}

func rootCause(err error) string {
	for {
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return err.Error()
			}
			err = errs[len(errs)-1]
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == nil {
				return err.Error()
			}
			err = next
		default:
			return err.Error()
		}
	}
}

func statusText(code int) string {
	if t := http.StatusText(code); t != "" {
		return t
	}
	return "Desconocido"
}
