package domain

import (
	"fmt"
	"time"
)

// MediaKind identifies which part of the library an entry belongs to
type MediaKind string

const (
	KindAnime  MediaKind = "anime"
	KindSeries MediaKind = "series"
	KindFilm   MediaKind = "film"
)

// ScanOrder is the order in which the scanner walks the library
var ScanOrder = []MediaKind{KindAnime, KindSeries, KindFilm}

// IsValid reports whether the kind is known
func (k MediaKind) IsValid() bool {
	switch k {
	case KindAnime, KindSeries, KindFilm:
		return true
	}
	return false
}

// IsEpisodic reports whether entries of this kind are tracked per episode
func (k MediaKind) IsEpisodic() bool {
	return k == KindAnime || k == KindSeries
}

// PathSegment returns the API path segment for the kind
func (k MediaKind) PathSegment() string {
	if k == KindFilm {
		return "films"
	}
	return string(k)
}

// ParseMediaKind accepts both the kind name and its API path segment
func ParseMediaKind(s string) (MediaKind, error) {
	switch s {
	case "anime":
		return KindAnime, nil
	case "series", "tv":
		return KindSeries, nil
	case "film", "films", "movie", "movies":
		return KindFilm, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidKind, s)
}

// LibraryEntry is one tracked anime, series or film
type LibraryEntry struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	Kind               MediaKind `json:"kind" gorm:"uniqueIndex:idx_kind_name;not null"`
	Name               string    `json:"name" gorm:"uniqueIndex:idx_kind_name;not null"`
	Provider           string    `json:"provider" gorm:"index"`
	SourceURL          string    `json:"source_url"`
	MediaID            string    `json:"media_id,omitempty"`
	Slug               string    `json:"slug,omitempty"`
	CatalogID          string    `json:"catalog_id,omitempty"`
	Language           string    `json:"language,omitempty"`
	Year               string    `json:"year,omitempty"`
	EpisodesDownloaded int       `json:"episodes_downloaded"`
	EpisodesTotal      *int      `json:"episodes_total"`
	Downloaded         bool      `json:"downloaded"`
	LastUpdate         time.Time `json:"last_update"`

	// Display metadata, never consulted by sync
	PosterURL string   `json:"poster_url,omitempty"`
	Rating    float64  `json:"rating,omitempty"`
	Genres    []string `json:"genres,omitempty" gorm:"serializer:json"`
	Synopsis  string   `json:"synopsis,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the gorm table name
func (LibraryEntry) TableName() string {
	return "library_entries"
}

// Key identifies the entry across kinds
func (e *LibraryEntry) Key() EntryKey {
	return EntryKey{Kind: e.Kind, Name: e.Name}
}

// MissingUnits returns the episode indexes to fetch given what the provider
// currently has available. Films return a single nil unit when not yet
// downloaded.
func (e *LibraryEntry) MissingUnits(available int) []*int {
	if !e.Kind.IsEpisodic() {
		if e.Downloaded || available < 1 {
			return nil
		}
		return []*int{nil}
	}

	var units []*int
	for i := e.EpisodesDownloaded + 1; i <= available; i++ {
		ep := i
		units = append(units, &ep)
	}
	return units
}

// ApplyAvailability records what the provider reported. The total only grows
// and never drops below the downloaded counter.
func (e *LibraryEntry) ApplyAvailability(a Availability) {
	reported := a.Available
	if a.Total != nil && *a.Total > reported {
		reported = *a.Total
	}
	if reported < 1 {
		return
	}
	if reported < e.EpisodesDownloaded {
		reported = e.EpisodesDownloaded
	}
	if e.EpisodesTotal == nil || reported > *e.EpisodesTotal {
		total := reported
		e.EpisodesTotal = &total
	}
}

// MarkEpisode advances the downloaded counter when episode is the next one
// in sequence. It reports whether the counter moved.
func (e *LibraryEntry) MarkEpisode(episode int) bool {
	if episode != e.EpisodesDownloaded+1 {
		return false
	}
	e.EpisodesDownloaded = episode
	if e.EpisodesTotal != nil && *e.EpisodesTotal < e.EpisodesDownloaded {
		total := e.EpisodesDownloaded
		e.EpisodesTotal = &total
	}
	e.LastUpdate = time.Now()
	return true
}

// MarkFilmDownloaded flags a film as fetched
func (e *LibraryEntry) MarkFilmDownloaded() {
	e.Downloaded = true
	e.LastUpdate = time.Now()
}

// IsComplete reports whether nothing is left to download as far as we know
func (e *LibraryEntry) IsComplete() bool {
	if !e.Kind.IsEpisodic() {
		return e.Downloaded
	}
	return e.EpisodesTotal != nil && e.EpisodesDownloaded >= *e.EpisodesTotal
}

// EpisodeStatus is one episode of an episodic entry
type EpisodeStatus struct {
	Number     int  `json:"number"`
	Downloaded bool `json:"downloaded"`
}

// EpisodeList shows which episodes of an entry are downloaded and which are
// still missing, up to the known total
type EpisodeList struct {
	Name       string          `json:"name"`
	Total      int             `json:"total"`
	Downloaded int             `json:"downloaded"`
	Complete   bool            `json:"complete"`
	Missing    []int           `json:"missing"`
	Episodes   []EpisodeStatus `json:"episodes"`
}

// EpisodeList builds the per-episode view. Only the contiguous downloaded
// prefix counts as downloaded. Films have no episodes.
func (e *LibraryEntry) EpisodeList() (*EpisodeList, error) {
	if !e.Kind.IsEpisodic() {
		return nil, fmt.Errorf("%w: %s has no episodes", ErrInvalidRequest, e.Kind)
	}

	total := e.EpisodesDownloaded
	if e.EpisodesTotal != nil && *e.EpisodesTotal > total {
		total = *e.EpisodesTotal
	}

	list := &EpisodeList{
		Name:       e.Name,
		Total:      total,
		Downloaded: e.EpisodesDownloaded,
		Complete:   e.IsComplete(),
		Missing:    []int{},
		Episodes:   make([]EpisodeStatus, 0, total),
	}
	for i := 1; i <= total; i++ {
		done := i <= e.EpisodesDownloaded
		list.Episodes = append(list.Episodes, EpisodeStatus{Number: i, Downloaded: done})
		if !done {
			list.Missing = append(list.Missing, i)
		}
	}
	return list, nil
}

// EntryKey is the kind+name pair that identifies an entry
type EntryKey struct {
	Kind MediaKind `json:"kind"`
	Name string    `json:"name"`
}

func (k EntryKey) String() string {
	return string(k.Kind) + "/" + k.Name
}

// LibraryStats holds per-kind counters
type LibraryStats struct {
	Anime              int64 `json:"anime"`
	Series             int64 `json:"series"`
	Films              int64 `json:"films"`
	EpisodesDownloaded int64 `json:"episodes_downloaded"`
	FilmsDownloaded    int64 `json:"films_downloaded"`
}
