// Package actor identifies the user or system performing an action, for the
// append-only stock adjustment ledger and for audit logging.
package actor

import (
	"context"
	"fmt"
)

// SystemActorID identifies actions initiated by the engine itself
// (scheduled runs, automatic status transitions).
const SystemActorID = "00000000-0000-0000-0000-000000000000"

// Actor represents the entity performing an action in the system.
type Actor struct {
	// ID is the unique identifier of the actor (user ID)
	ID string `json:"id"`

	// Name is the actor's display name
	Name string `json:"name"`

	// Email is the actor's email address
	Email string `json:"email"`
}

// String returns a string representation of the actor for logging
func (a *Actor) String() string {
	if a == nil {
		return "system"
	}
	return fmt.Sprintf("%s (%s)", a.Name, a.Email)
}

// IsSystem returns true if the actor represents the system.
func (a *Actor) IsSystem() bool {
	if a == nil {
		return true
	}
	return a.ID == SystemActorID
}

// contextKey is the type for context keys to avoid collisions
type contextKey string

const actorContextKey contextKey = "actor"

// FromContext retrieves the Actor from the context.
// Returns the system actor if none is present (e.g., background jobs).
func FromContext(ctx context.Context) *Actor {
	if ctx == nil {
		return SystemActor()
	}
	a, ok := ctx.Value(actorContextKey).(*Actor)
	if !ok || a == nil {
		return SystemActor()
	}
	return a
}

// WithActor returns a new context with the Actor attached.
func WithActor(ctx context.Context, a *Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorContextKey, a)
}

// SystemActor returns an Actor representing the engine itself.
// Use this for scheduled tasks and system-initiated operations.
func SystemActor() *Actor {
	return &Actor{
		ID:    SystemActorID,
		Name:  "System",
		Email: "system@pharmstock.local",
	}
}
