package audit

import (
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// EventBuilder provides a fluent API for constructing audit events.
//
// Usage:
//
//	event := audit.NewEventBuilder(r).
//		ForResource("progress").
//		WithAction(audit.ActionReset).
//		Success().
//		Build()
//
//	service.Log(event)
type EventBuilder struct {
	event Event
}

// NewEventBuilder creates a builder initialized from the request: request id, client address
// (after chi's RealIP) and user agent. The actor defaults to the admin; rejected credentials
// should use AsAnonymous.
func NewEventBuilder(r *http.Request) *EventBuilder {
	return &EventBuilder{
		event: Event{
			RequestID: middleware.GetReqID(r.Context()),
			Actor:     Actor{Kind: ActorKindAdmin, Display: "admin"},
			Source: Source{
				IPAddress: r.RemoteAddr,
				UserAgent: r.UserAgent(),
			},
			Status: StatusSuccess,
		},
	}
}

// AsAnonymous marks the actor as unauthenticated.
func (b *EventBuilder) AsAnonymous() *EventBuilder {
	b.event.Actor = Actor{Kind: ActorKindAnonymous, Display: "anonymous"}
	return b
}

// ForResource sets what the action touched.
func (b *EventBuilder) ForResource(resource string) *EventBuilder {
	b.event.Resource = resource
	return b
}

// WithAction sets the action for the event.
func (b *EventBuilder) WithAction(action string) *EventBuilder {
	b.event.Action = action
	return b
}

// WithDetails attaches extra fields; sensitive keys are redacted.
func (b *EventBuilder) WithDetails(details map[string]any) *EventBuilder {
	if details != nil {
		b.event.Details = Redact(details)
	}
	return b
}

// Success marks the event as successful (default).
func (b *EventBuilder) Success() *EventBuilder {
	b.event.Status = StatusSuccess
	return b
}

// Failure marks the event as failed and sets an error message.
func (b *EventBuilder) Failure(errorMsg string) *EventBuilder {
	b.event.Status = StatusFailure
	b.event.ErrorMessage = errorMsg
	return b
}

// Build returns the constructed Event.
func (b *EventBuilder) Build() Event {
	return b.event
}

var sensitiveKeys = map[string]bool{
	"authorization": true,
	"api_key":       true,
	"token":         true,
	"cookie":        true,
}

// Redact returns a copy of data with sensitive keys masked, recursing into nested maps.
func Redact(data map[string]any) map[string]any {
	if data == nil {
		return nil
	}
	out := make(map[string]any, len(data))
	for k, v := range data {
		switch {
		case sensitiveKeys[k]:
			out[k] = "[REDACTED]"
		default:
			if nested, ok := v.(map[string]any); ok {
				out[k] = Redact(nested)
			} else {
				out[k] = v
			}
		}
	}
	return out
}
