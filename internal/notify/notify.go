// Package notify carries user-visible notifications (the console's toasts).
package notify

import (
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"consola.app/internal/ids"
)

type Severity string

const (
	SeverityInfo  Severity = "info"
	SeverityWarn  Severity = "warn"
	SeverityError Severity = "error"
)

// Notification is one message shown to the user.
type Notification struct {
	ID       string
	Severity Severity
	Summary  string
	Detail   string
	At       time.Time
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(Notification)

func (f NotifierFunc) Notify(n Notification) { f(n) }

// Discard drops every notification.
var Discard Notifier = NotifierFunc(func(Notification) {})

const (
	defaultCapacity = 64
	defaultWindow   = 2 * time.Second
)

// Feed keeps the most recent notifications and suppresses identical messages
// arriving within a short window of each other.
type Feed struct {
	mu       sync.Mutex
	items    []Notification
	capacity int
	window   time.Duration
	now      func() time.Time
	out      io.Writer
}

type FeedOption func(*Feed)

// WithCapacity bounds the number of retained notifications.
func WithCapacity(n int) FeedOption {
	return func(f *Feed) {
		if n > 0 {
			f.capacity = n
		}
	}
}

// WithDedupeWindow sets how long an identical message is suppressed.
func WithDedupeWindow(d time.Duration) FeedOption {
	return func(f *Feed) { f.window = d }
}

// WithClock overrides the time source.
func WithClock(fn func() time.Time) FeedOption {
	return func(f *Feed) {
		if fn != nil {
			f.now = fn
		}
	}
}

// WithWriter echoes accepted notifications to w, one line each.
func WithWriter(w io.Writer) FeedOption {
	return func(f *Feed) { f.out = w }
}

func NewFeed(opts ...FeedOption) *Feed {
	f := &Feed{capacity: defaultCapacity, window: defaultWindow, now: time.Now}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Notify records n unless an identical message was accepted within the dedupe window.
func (f *Feed) Notify(n Notification) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if n.At.IsZero() {
		n.At = now
	}
	if n.Severity == "" {
		n.Severity = SeverityInfo
	}
	for i := len(f.items) - 1; i >= 0; i-- {
		prev := f.items[i]
		if n.At.Sub(prev.At) > f.window {
			break
		}
		if prev.Severity == n.Severity && prev.Summary == n.Summary && prev.Detail == n.Detail {
			return
		}
	}
	if n.ID == "" {
		n.ID = ids.NewAt(n.At)
	}
	f.items = append(f.items, n)
	if len(f.items) > f.capacity {
		f.items = append([]Notification(nil), f.items[len(f.items)-f.capacity:]...)
	}
	if f.out != nil {
		fmt.Fprintf(f.out, "[%s] %s: %s\n", n.Severity, n.Summary, n.Detail)
	}
}

// Items returns a copy of the retained notifications, oldest first.
func (f *Feed) Items() []Notification {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Notification(nil), f.items...)
}

// ForStatus maps an HTTP failure to notification copy, preferring the backend message.
// Status 0 denotes a client or network failure.
func ForStatus(status int, message string) Notification {
	n := Notification{Severity: SeverityError}
	def := func(d string) string {
		if message != "" {
			return message
		}
		return d
	}
	switch status {
	case 0:
		n.Summary = "Error de Cliente/Red"
		n.Detail = "Error: " + def("sin conexión con el servidor.")
	case http.StatusBadRequest:
		n.Summary = "Solicitud Inválida"
		n.Detail = def("Los datos enviados son incorrectos.")
	case http.StatusUnauthorized:
		n.Summary = "Credenciales invalidas"
		n.Detail = def("Correo o contraseña invalidos.")
	case http.StatusForbidden:
		n.Summary = "Acceso Denegado"
		n.Detail = def("No tienes los permisos necesarios para realizar esta acción.")
	case http.StatusNotFound:
		n.Summary = "No Encontrado"
		n.Detail = def("El recurso solicitado no existe.")
	case http.StatusConflict:
		n.Summary = "Conflicto"
		n.Detail = def("Ocurrió un problema en el servidor.")
	case http.StatusUnprocessableEntity:
		n.Summary = "Error de Validación"
		n.Detail = def("Los datos proporcionados no son válidos.")
	case http.StatusInternalServerError:
		n.Summary = "Error Interno del Servidor"
		n.Detail = def("Ocurrió un problema en el servidor.")
	default:
		n.Summary = fmt.Sprintf("Error HTTP %d", status)
		text := http.StatusText(status)
		if text == "" {
			text = "Error desconocido del servidor."
		}
		n.Detail = def(text)
	}
	return n
}
