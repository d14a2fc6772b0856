package session

import "context"

// CommandOption maps a short numeric reply to a previously offered action.
// Valid for one menu turn; a new menu replaces the whole set.
type CommandOption struct {
	ID         string `json:"id"`
	Label      string `json:"label"`
	ActionCode string `json:"action_code"`
}

// Store keeps one BookingContext per user identity.
//
// Callers must read with Get at the start of handling an inbound event and
// merge against that value; merging a previously cached context loses
// concurrent field updates.
type Store interface {
	// Get returns the context for an identity and whether its flow state is
	// live. A stale context has its volatile fields reset in place (durable
	// fields survive) and is reported as not live.
	Get(ctx context.Context, identity string) (*BookingContext, bool, error)

	// Merge applies a partial update and refreshes the activity timestamp.
	// The context is created if it does not exist yet.
	Merge(ctx context.Context, identity string, p Partial) (*BookingContext, error)

	// Clear resets the volatile fields, keeping durable fields and any field
	// named in keep. The record itself is retained.
	Clear(ctx context.Context, identity string, keep ...Field) error
}

// OptionRegistry stores the numbered-menu options offered to an identity.
type OptionRegistry interface {
	// ReplaceOptions swaps the identity's option set for the new one.
	// An empty set clears the registry for that identity.
	ReplaceOptions(ctx context.Context, identity string, opts []CommandOption) error

	// Resolve maps a plain numeric reply to the matching option.
	Resolve(ctx context.Context, identity string, reply string) (CommandOption, bool, error)
}
