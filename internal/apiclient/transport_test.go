package apiclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"consola.app/internal/obs"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

func mustURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("parse %q: %v", raw, err)
	}
	return u
}

func TestIsProtected(t *testing.T) {
	base := mustURL(t, "https://api.example.com/api")
	cases := map[string]bool{
		"https://api.example.com/api":            true,
		"https://api.example.com/api/auth/me":    true,
		"https://API.example.com/api/categorias": true,
		"https://api.example.com/apix":           false,
		"https://api.example.com/assets/logo":    false,
		"http://api.example.com/api/auth/me":     false,
		"https://cdn.example.com/api/auth/me":    false,
	}
	for raw, want := range cases {
		if got := IsProtected(mustURL(t, raw), base); got != want {
			t.Fatalf("IsProtected(%q) = %v, want %v", raw, got, want)
		}
	}
}

func TestAugmentClonesRequest(t *testing.T) {
	base := mustURL(t, "https://api.example.com/api")
	req, _ := http.NewRequest(http.MethodGet, "https://api.example.com/api/auth/me", nil)

	out := Augment(req, "T1", base)
	if out == req {
		t.Fatalf("expected a clone when attaching credentials")
	}
	if got := out.Header.Get("Authorization"); got != "Bearer T1" {
		t.Fatalf("Authorization = %q", got)
	}
	if got := req.Header.Get("Authorization"); got != "" {
		t.Fatalf("original request mutated: %q", got)
	}
}

func TestAugmentPassesThrough(t *testing.T) {
	base := mustURL(t, "https://api.example.com/api")
	external, _ := http.NewRequest(http.MethodGet, "https://cdn.example.com/font.woff", nil)
	if out := Augment(external, "T1", base); out != external || out.Header.Get("Authorization") != "" {
		t.Fatalf("non-protected request must pass unmodified")
	}
	protected, _ := http.NewRequest(http.MethodGet, "https://api.example.com/api/auth/me", nil)
	if out := Augment(protected, "", base); out != protected {
		t.Fatalf("request without credential must pass unmodified")
	}
}

func TestAugmentKeepsExplicitAuthorization(t *testing.T) {
	base := mustURL(t, "https://api.example.com/api")
	req, _ := http.NewRequest(http.MethodPost, "https://api.example.com/api/auth/logout", nil)
	req.Header.Set("Authorization", "Bearer OLD")
	out := Augment(req, "NEW", base)
	if out != req {
		t.Fatalf("request with explicit credential must pass unmodified")
	}
	if got := out.Header.Get("Authorization"); got != "Bearer OLD" {
		t.Fatalf("Authorization = %q, want Bearer OLD", got)
	}
}

func TestLogoutSendsItsOwnTokenWhileAnotherIsStaged(t *testing.T) {
	var sawAuth atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	base := mustURL(t, srv.URL+"/api")
	tr := NewTransport(base, staticToken("NEW"), nil)
	client, err := New(srv.URL+"/api", &http.Client{Transport: tr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := client.Logout(context.Background(), "OLD"); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if got := sawAuth.Load(); got != "Bearer OLD" {
		t.Fatalf("server saw Authorization %q, want Bearer OLD", got)
	}
}

func TestRejectionOfOtherCredentialIsIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
	}))
	defer srv.Close()

	base := mustURL(t, srv.URL+"/api")
	tr := NewTransport(base, staticToken("NEW"), nil)
	var teardowns int32
	tr.OnRejection(func(context.Context) { atomic.AddInt32(&teardowns, 1) })
	client, err := New(srv.URL+"/api", &http.Client{Transport: tr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := client.Logout(context.Background(), "OLD"); err == nil {
		t.Fatalf("expected 401 error for caller")
	}
	if n := atomic.LoadInt32(&teardowns); n != 0 {
		t.Fatalf("rejection of OLD tore down the NEW session: %d", n)
	}
	if err := client.GetJSON(context.Background(), "/categorias", nil); err == nil {
		t.Fatalf("expected 401 error for caller")
	}
	if n := atomic.LoadInt32(&teardowns); n != 1 {
		t.Fatalf("rejection of staged credential: teardowns = %d, want 1", n)
	}
}

func TestRejectionObserver(t *testing.T) {
	base := mustURL(t, "https://api.example.com/api")
	var calls int
	o := RejectionObserver{Base: base, Teardown: func(context.Context) { calls++ }}

	protected, _ := http.NewRequest(http.MethodGet, "https://api.example.com/api/categorias", nil)
	external, _ := http.NewRequest(http.MethodGet, "https://other.example.com/x", nil)
	login, _ := http.NewRequest(http.MethodPost, "https://api.example.com/api/auth/login", nil)

	cases := []struct {
		req    *http.Request
		status int
		want   bool
	}{
		{protected, http.StatusUnauthorized, true},
		{protected, StatusSessionExpired, true},
		{protected, http.StatusForbidden, false},
		{protected, http.StatusInternalServerError, false},
		{external, http.StatusUnauthorized, false},
		{login, http.StatusUnauthorized, false},
		{login, StatusSessionExpired, false},
	}
	for _, tc := range cases {
		got := o.Observe(tc.req, &http.Response{StatusCode: tc.status})
		if got != tc.want {
			t.Fatalf("Observe(%s, %d) = %v, want %v", tc.req.URL, tc.status, got, tc.want)
		}
	}
	if calls != 2 {
		t.Fatalf("teardown calls = %d, want 2", calls)
	}
}

func TestTransportEndToEnd(t *testing.T) {
	var sawAuth, sawRequestID atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(r.Header.Get("Authorization"))
		sawRequestID.Store(r.Header.Get("X-Request-ID"))
		if r.URL.Path == "/api/categorias" {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"Unauthenticated."}`))
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	base := mustURL(t, srv.URL+"/api")
	reg := prometheus.NewRegistry()
	tr := NewTransport(base, staticToken("T1"), nil)
	tr.Metrics = obs.NewMetrics(reg)
	var teardowns int32
	tr.OnRejection(func(context.Context) { atomic.AddInt32(&teardowns, 1) })

	client, err := New(srv.URL+"/api", &http.Client{Transport: tr})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var out struct{ OK bool }
	if err := client.GetJSON(context.Background(), "/productos", &out); err != nil || !out.OK {
		t.Fatalf("GetJSON: %v, %+v", err, out)
	}
	if got := sawAuth.Load(); got != "Bearer T1" {
		t.Fatalf("server saw Authorization %q", got)
	}
	if got, _ := sawRequestID.Load().(string); got == "" {
		t.Fatalf("expected request id header")
	}

	err = client.GetJSON(context.Background(), "/categorias", nil)
	ae, ok := AsAPIError(err)
	if !ok || ae.Status != http.StatusUnauthorized || ae.Message != "Unauthenticated." {
		t.Fatalf("expected original 401 error for caller, got %v", err)
	}
	if n := atomic.LoadInt32(&teardowns); n != 1 {
		t.Fatalf("teardowns = %d, want 1", n)
	}
	if got := testutil.ToFloat64(tr.Metrics.APIRequests.WithLabelValues(http.MethodGet, "401")); got != 1 {
		t.Fatalf("401 counter = %v", got)
	}
}
