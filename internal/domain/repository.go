package domain

import "context"

// LibraryRepository defines the interface for library persistence
type LibraryRepository interface {
	// Create inserts a new entry, ErrEntryExists on duplicate kind+name
	Create(entry *LibraryEntry) error

	// Update saves all fields of an existing entry
	Update(entry *LibraryEntry) error

	// Upsert inserts or updates by kind+name
	Upsert(entry *LibraryEntry) error

	// Delete removes an entry, ErrEntryNotFound if absent
	Delete(kind MediaKind, name string) error

	// Get finds one entry, ErrEntryNotFound if absent
	Get(kind MediaKind, name string) (*LibraryEntry, error)

	// List returns every entry of a kind ordered by name
	List(kind MediaKind) ([]*LibraryEntry, error)

	// ListAll returns every entry ordered by kind then name
	ListAll() ([]*LibraryEntry, error)

	// Stats returns per-kind counters
	Stats() (*LibraryStats, error)
}

// StatusStore keeps the last progress event per entry
type StatusStore interface {
	Set(ctx context.Context, event ProgressEvent) error
	Get(ctx context.Context, key EntryKey) (*ProgressEvent, error)
	Delete(ctx context.Context, key EntryKey) error
}

// LibraryRefresher asks a media server to rescan its library
type LibraryRefresher interface {
	Refresh(ctx context.Context) error
}
