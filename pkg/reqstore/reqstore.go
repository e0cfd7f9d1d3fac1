// Package reqstore is the Decision Core's narrow view of the external
// request store: prior resident requests, consumed by the Simulator's
// query_past_solutions tool and by check_recurring_issues. The core only
// ever reads; the admin-gated listing exists for operational tooling.
package reqstore

import "context"

// PastRequest is one previously submitted resident request, per spec.md §6.
type PastRequest struct {
	RequestID   string
	Category    string
	Status      string
	CreatedAt   string
	MessageText string
}

// Client is the external request store's contract as the core consumes it.
// A 4xx/5xx from a real deployment's store should surface here as an error;
// callers are expected to treat that error as "no history available" and
// proceed, never as a fatal condition (spec.md §6/§7, ErrToolUnavailable).
type Client interface {
	ListByResident(ctx context.Context, residentID string) ([]PastRequest, error)
	ListAll(ctx context.Context, adminKey string) ([]PastRequest, error)
}
