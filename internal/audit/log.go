package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"consola.app/internal/auth"
	"consola.app/internal/obs"
)

// Session events.
const (
	EventLoginSucceeded   = "auth.login.succeeded"
	EventLoginFailed      = "auth.login.failed"
	EventSessionRestored  = "auth.session.restored"
	EventSessionInvalid   = "auth.session.invalid"
	EventTokenRefreshed   = "auth.token.refreshed"
	EventRefreshFailed    = "auth.token.refresh_failed"
	EventLogout           = "auth.logout"
	EventLogoutRemoteFail = "auth.logout.remote_failed"
	EventTeardown         = "auth.session.teardown"
	EventAccessDenied     = "auth.access.denied"
)

// LogEvent writes an audit log entry enriched with request and user context.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"type":  "audit",
		"event": event,
	}
	if rid, ok := auth.RequestIDFromContext(ctx); ok {
		entry["request_id"] = rid
	}
	if userID, ok := auth.UserIDFromContext(ctx); ok {
		entry["user_id"] = userID
	}
	copyFields := make(map[string]any, len(fields))
	for k, v := range fields {
		copyFields[k] = v
	}
	entry["fields"] = copyFields

	data, err := json.Marshal(entry)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
