// Package repository defines the persistence contracts the client depends
// on. Implementations live under internal/infra.
package repository

import (
	"context"

	"backer/internal/domain/entity"
)

// CredentialRepository is the single source of truth for the bearer token
// pair in persistent client-side storage.
//
// Reads never fail the caller: when storage is unavailable or the stored
// data is unreadable, Load reports empty credentials and the client runs
// unauthenticated. Save replaces the pair as a whole so concurrent readers
// never observe a partially written pair.
type CredentialRepository interface {
	// Load returns the stored credential pair, or an empty pair when
	// nothing is stored or storage cannot be read.
	Load(ctx context.Context) entity.Credentials

	// Save atomically persists both tokens, replacing any prior pair.
	Save(ctx context.Context, creds entity.Credentials) error

	// Clear removes the stored pair. Clearing an empty store is a no-op.
	Clear(ctx context.Context) error
}
