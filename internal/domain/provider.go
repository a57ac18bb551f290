package domain

import "context"

// CandidateResult is a search hit from a catalog or metadata provider
type CandidateResult struct {
	Provider  string    `json:"provider"`
	Kind      MediaKind `json:"kind"`
	ID        string    `json:"id"`
	Slug      string    `json:"slug,omitempty"`
	Name      string    `json:"name"`
	URL       string    `json:"url,omitempty"`
	Year      string    `json:"year,omitempty"`
	Episodes  *int      `json:"episodes,omitempty"`
	PosterURL string    `json:"poster_url,omitempty"`
	Rating    float64   `json:"rating,omitempty"`
	Genres    []string  `json:"genres,omitempty"`
	Synopsis  string    `json:"synopsis,omitempty"`
}

// Availability is what a provider currently offers for an entry.
// Available counts released units; Total is the announced count if known.
type Availability struct {
	Available int
	Total     *int
}

// ResolvedStream is a fetchable stream for one unit
type ResolvedStream struct {
	URL     string
	Headers map[string]string
	Episode *int
	Season  int // 0 when the provider has no seasons
	// EpisodeInSeason is the episode number inside Season
	EpisodeInSeason int
}

// Provider is a catalog/streaming site that can produce download URLs
type Provider interface {
	Name() string
	Kinds() []MediaKind
	Search(ctx context.Context, kind MediaKind, query string) ([]CandidateResult, error)
	Inspect(ctx context.Context, kind MediaKind, rawURL string) (*CandidateResult, error)
	Availability(ctx context.Context, entry *LibraryEntry) (*Availability, error)
	Resolve(ctx context.Context, entry *LibraryEntry, episode *int) (*ResolvedStream, error)
}

// MetadataProvider is a read-only source of display metadata
type MetadataProvider interface {
	Name() string
	Search(ctx context.Context, kind MediaKind, query string) ([]CandidateResult, error)
	Lookup(ctx context.Context, kind MediaKind, id string) (*CandidateResult, error)
}

// ApplyMetadata copies display fields onto an entry
func (e *LibraryEntry) ApplyMetadata(m *CandidateResult) {
	if m == nil {
		return
	}
	if m.ID != "" {
		e.CatalogID = m.ID
	}
	if m.PosterURL != "" {
		e.PosterURL = m.PosterURL
	}
	if m.Rating > 0 {
		e.Rating = m.Rating
	}
	if len(m.Genres) > 0 {
		e.Genres = m.Genres
	}
	if m.Synopsis != "" {
		e.Synopsis = m.Synopsis
	}
	if e.Year == "" {
		e.Year = m.Year
	}
}
