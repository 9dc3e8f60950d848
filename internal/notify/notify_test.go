package notify

import (
	"bytes"
	"net/http"
	"strings"
	"testing"
	"time"
)

func TestFeedSuppressesDuplicatesWithinWindow(t *testing.T) {
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	var buf bytes.Buffer
	f := NewFeed(WithClock(func() time.Time { return now }), WithDedupeWindow(time.Second), WithWriter(&buf))

	n := Notification{Severity: SeverityWarn, Summary: "Sesión", Detail: "expirada"}
	f.Notify(n)
	f.Notify(n)
	if got := len(f.Items()); got != 1 {
		t.Fatalf("expected duplicate suppressed, got %d items", got)
	}

	now = now.Add(2 * time.Second)
	f.Notify(n)
	items := f.Items()
	if len(items) != 2 {
		t.Fatalf("expected second notification after window, got %d", len(items))
	}
	if items[0].ID == "" || items[0].ID == items[1].ID {
		t.Fatalf("expected distinct ids, got %q and %q", items[0].ID, items[1].ID)
	}
	if strings.Count(buf.String(), "\n") != 2 {
		t.Fatalf("unexpected writer output: %q", buf.String())
	}
}

func TestFeedCapacity(t *testing.T) {
	f := NewFeed(WithCapacity(2), WithDedupeWindow(0))
	for _, d := range []string{"a", "b", "c"} {
		f.Notify(Notification{Summary: "s", Detail: d})
	}
	items := f.Items()
	if len(items) != 2 || items[0].Detail != "b" || items[1].Detail != "c" {
		t.Fatalf("unexpected retained items: %+v", items)
	}
}

func TestForStatus(t *testing.T) {
	cases := []struct {
		status  int
		message string
		summary string
		detail  string
	}{
		{http.StatusBadRequest, "", "Solicitud Inválida", "Los datos enviados son incorrectos."},
		{http.StatusUnauthorized, "Credenciales inválidas", "Credenciales invalidas", "Credenciales inválidas"},
		{http.StatusUnprocessableEntity, "", "Error de Validación", "Los datos proporcionados no son válidos."},
		{http.StatusServiceUnavailable, "", "Error HTTP 503", "Service Unavailable"},
		{0, "dial tcp: refused", "Error de Cliente/Red", "Error: dial tcp: refused"},
	}
	for _, tc := range cases {
		n := ForStatus(tc.status, tc.message)
		if n.Summary != tc.summary || n.Detail != tc.detail || n.Severity != SeverityError {
			t.Fatalf("ForStatus(%d, %q) = %+v", tc.status, tc.message, n)
		}
	}
}
