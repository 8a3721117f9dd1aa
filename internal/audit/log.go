package audit

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"recircuit.org/internal/auth"
	"recircuit.org/internal/obs"
)

type ctxKey string

const requestIDKey ctxKey = "audit_request_id"

// WithRequestID carries the request identifier so audit entries can be
// correlated with the access log.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	requestID = strings.TrimSpace(requestID)
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

type entry struct {
	TS        string         `json:"ts"`
	Type      string         `json:"type"`
	Event     string         `json:"event"`
	RequestID string         `json:"request_id,omitempty"`
	UserID    string         `json:"user_id,omitempty"`
	Fields    map[string]any `json:"fields"`
}

// LogEvent emits one audit line on the service logger. The actor and request
// id are taken from the context when present; fields carry event detail.
func LogEvent(ctx context.Context, event string, fields map[string]any) error {
	event = strings.TrimSpace(event)
	if event == "" {
		return errors.New("event name is required")
	}
	e := entry{
		TS:     time.Now().UTC().Format(time.RFC3339Nano),
		Type:   "audit",
		Event:  event,
		Fields: map[string]any{},
	}
	if ctx != nil {
		if rid, ok := ctx.Value(requestIDKey).(string); ok {
			e.RequestID = rid
		}
		if userID, ok := auth.UserIDFromContext(ctx); ok {
			e.UserID = userID
		}
	}
	for k, v := range fields {
		e.Fields[k] = v
	}

	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	obs.Logger().Println(string(data))
	return nil
}
