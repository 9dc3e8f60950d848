package apiclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"consola.app/internal/auth"
	"consola.app/internal/obs"
)

const (
	authHeader      = "Authorization"
	bearerPrefix    = "Bearer "
	requestIDHeader = "X-Request-ID"
)

// TokenSource yields the currently staged credential, or "" when none.
type TokenSource interface {
	Token() string
}

// IsProtected reports whether target falls under the protected API base.
func IsProtected(target, base *url.URL) bool {
	if target == nil || base == nil {
		return false
	}
	if !strings.EqualFold(target.Scheme, base.Scheme) || !strings.EqualFold(target.Host, base.Host) {
		return false
	}
	prefix := strings.TrimSuffix(base.Path, "/")
	if prefix == "" {
		return true
	}
	return target.Path == prefix || strings.HasPrefix(target.Path, prefix+"/")
}

// Augment returns req with the bearer credential attached when token is set
// and req targets the protected API. An Authorization header already on req
// is kept, so calls made for a specific credential are never re-pointed at
// the staged one. The input request is never mutated: a clone is returned
// when a header is added, req itself otherwise.
func Augment(req *http.Request, token string, base *url.URL) *http.Request {
	if token == "" || req.Header.Get(authHeader) != "" || !IsProtected(req.URL, base) {
		return req
	}
	out := req.Clone(req.Context())
	out.Header.Set(authHeader, bearerPrefix+token)
	return out
}

// LoginPath is the credential exchange endpoint under the API base. Its 401
// means wrong credentials, not a dead session, so it is never observed.
const LoginPath = "/auth/login"

// RejectionObserver reacts to 401/419 answers from the protected API by
// invoking Teardown. It never retries; the response is passed on unchanged.
type RejectionObserver struct {
	Base     *url.URL
	Teardown func(ctx context.Context)
}

// Observe returns true when it triggered a teardown.
func (o RejectionObserver) Observe(req *http.Request, resp *http.Response) bool {
	if o.Teardown == nil || resp == nil || !IsAuthStatus(resp.StatusCode) {
		return false
	}
	if !IsProtected(req.URL, o.Base) || isLogin(req.URL, o.Base) {
		return false
	}
	o.Teardown(req.Context())
	return true
}

func isLogin(target, base *url.URL) bool {
	return target.Path == strings.TrimSuffix(base.Path, "/")+LoginPath
}

// Transport is the outbound request pipeline: credential augmentation,
// request ids, metrics and the rejection observer around Base.
type Transport struct {
	Base     http.RoundTripper
	APIBase  *url.URL
	Tokens   TokenSource
	Observer RejectionObserver
	Metrics  *obs.Metrics
}

// NewTransport builds a Transport for apiBase. base defaults to http.DefaultTransport.
func NewTransport(apiBase *url.URL, tokens TokenSource, base http.RoundTripper) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		Base:     base,
		APIBase:  apiBase,
		Tokens:   tokens,
		Observer: RejectionObserver{Base: apiBase},
	}
}

// OnRejection installs the teardown callback run on 401/419.
func (t *Transport) OnRejection(fn func(ctx context.Context)) {
	t.Observer.Teardown = fn
}

func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	token := ""
	if t.Tokens != nil {
		token = t.Tokens.Token()
	}
	out := Augment(req, token, t.APIBase)
	if out.Header.Get(requestIDHeader) == "" {
		if out == req {
			out = req.Clone(req.Context())
		}
		rid := uuid.NewString()
		out.Header.Set(requestIDHeader, rid)
		out = out.WithContext(auth.ContextWithRequestID(out.Context(), rid))
	}

	if t.Metrics != nil {
		t.Metrics.APIInFlight.Inc()
		defer t.Metrics.APIInFlight.Dec()
	}
	start := time.Now()
	resp, err := t.Base.RoundTrip(out)
	status := 0
	if resp != nil {
		status = resp.StatusCode
	}
	t.Metrics.ObserveRequest(req.Method, status, time.Since(start))
	if err != nil {
		return resp, err
	}
	if !t.stale(out) {
		t.Observer.Observe(out, resp)
	}
	return resp, nil
}

// stale reports whether req carried a credential other than the one staged
// now. A rejection of such a request says nothing about the current session.
func (t *Transport) stale(req *http.Request) bool {
	sent := strings.TrimPrefix(req.Header.Get(authHeader), bearerPrefix)
	if sent == "" || t.Tokens == nil {
		return false
	}
	return sent != t.Tokens.Token()
}
