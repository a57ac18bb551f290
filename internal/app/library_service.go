package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/pkg/logger"
)

// CatalogSource is the provider lookup the library service needs
type CatalogSource interface {
	ProviderSource
	ForKind(kind domain.MediaKind) (domain.Provider, error)
	Catalogs(kind domain.MediaKind) []domain.Provider
	Metadata(kind domain.MediaKind) []domain.MetadataProvider
}

// EntryFiles manages the folder of an entry
type EntryFiles interface {
	EnsureEntryDir(entry *domain.LibraryEntry) (string, error)
	RemoveEntry(entry *domain.LibraryEntry) error
	CountEpisodes(entry *domain.LibraryEntry) (int, error)
}

// SyncTracker reports in-flight syncs
type SyncTracker interface {
	IsInFlight(kind domain.MediaKind, name string) bool
}

// AddRequest describes a new library entry
type AddRequest struct {
	Kind      domain.MediaKind `json:"-"`
	URL       string           `json:"url" binding:"required"`
	Name      string           `json:"name,omitempty"`
	CatalogID string           `json:"catalog_id,omitempty"`
}

// MetadataUpdate edits the display metadata of an entry. A CatalogID is
// looked up first; the other fields override what the lookup found.
type MetadataUpdate struct {
	CatalogID *string  `json:"catalog_id,omitempty"`
	Synopsis  *string  `json:"synopsis,omitempty"`
	Rating    *float64 `json:"rating,omitempty"`
	Year      *string  `json:"year,omitempty"`
	Genres    []string `json:"genres,omitempty"`
	PosterURL *string  `json:"poster_url,omitempty"`
}

// AssociateRequest points an entry at another catalog page
type AssociateRequest struct {
	URL string `json:"url" binding:"required"`
}

// LibraryService handles library management outside of syncs
type LibraryService struct {
	repo      domain.LibraryRepository
	providers CatalogSource
	files     EntryFiles
	syncs     SyncTracker
	config    domain.MetadataConfig
	log       *logger.LoggerAdapter
}

// NewLibraryService creates a new library service
func NewLibraryService(
	repo domain.LibraryRepository,
	providers CatalogSource,
	files EntryFiles,
	syncs SyncTracker,
	config domain.MetadataConfig,
	log *logger.LoggerAdapter,
) *LibraryService {
	return &LibraryService{
		repo:      repo,
		providers: providers,
		files:     files,
		syncs:     syncs,
		config:    config,
		log:       log,
	}
}

// Add inspects a catalog URL and starts tracking it. Episodes already on
// disk in the entry folder are adopted as downloaded.
func (s *LibraryService) Add(ctx context.Context, req AddRequest) (*domain.LibraryEntry, error) {
	if !req.Kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, req.Kind)
	}
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrInvalidRequest)
	}

	provider, err := s.providers.ForKind(req.Kind)
	if err != nil {
		return nil, err
	}

	candidate, err := provider.Inspect(ctx, req.Kind, rawURL)
	if err != nil {
		return nil, err
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		name = strings.TrimSpace(candidate.Name)
	}
	if name == "" {
		return nil, fmt.Errorf("%w: no title found at %s", domain.ErrInvalidRequest, rawURL)
	}

	if _, err := s.repo.Get(req.Kind, name); err == nil {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrEntryExists, req.Kind, name)
	} else if !errors.Is(err, domain.ErrEntryNotFound) {
		return nil, err
	}

	entry := &domain.LibraryEntry{
		Kind:       req.Kind,
		Name:       name,
		Provider:   provider.Name(),
		SourceURL:  candidate.URL,
		MediaID:    candidate.ID,
		Slug:       candidate.Slug,
		Year:       candidate.Year,
		LastUpdate: time.Now(),
	}
	entry.ApplyMetadata(&domain.CandidateResult{
		PosterURL: candidate.PosterURL,
		Rating:    candidate.Rating,
		Genres:    candidate.Genres,
		Synopsis:  candidate.Synopsis,
	})

	// the first sync re-reads availability, so a failure here is not fatal
	if avail, err := provider.Availability(ctx, entry); err != nil {
		s.log.General().Warn("Availability unknown for new entry",
			zap.String("entry", entry.Key().String()),
			zap.Error(err))
	} else {
		entry.ApplyAvailability(*avail)
	}

	s.enrich(ctx, entry, req.CatalogID)

	if _, err := s.files.EnsureEntryDir(entry); err != nil {
		return nil, err
	}
	s.adoptExisting(entry)

	if err := s.repo.Create(entry); err != nil {
		return nil, err
	}

	s.log.General().Info("Entry added",
		zap.String("entry", entry.Key().String()),
		zap.String("provider", entry.Provider),
		zap.Int("episodes_downloaded", entry.EpisodesDownloaded))
	return entry, nil
}

// adoptExisting counts episode files already in the entry folder and treats
// them as the downloaded prefix
func (s *LibraryService) adoptExisting(entry *domain.LibraryEntry) {
	if !entry.Kind.IsEpisodic() {
		return
	}
	n, err := s.files.CountEpisodes(entry)
	if err != nil {
		s.log.General().Warn("Failed to count existing episodes",
			zap.String("entry", entry.Key().String()),
			zap.Error(err))
		return
	}
	if n == 0 {
		return
	}
	entry.EpisodesDownloaded = n
	if entry.EpisodesTotal != nil && *entry.EpisodesTotal < n {
		entry.EpisodesTotal = &n
	}
}

// enrich fills display metadata, best effort
func (s *LibraryService) enrich(ctx context.Context, entry *domain.LibraryEntry, catalogID string) {
	if !s.config.EnrichOnAdd && catalogID == "" {
		return
	}

	for _, m := range s.providers.Metadata(entry.Kind) {
		var (
			found *domain.CandidateResult
			err   error
		)
		if catalogID != "" {
			found, err = m.Lookup(ctx, entry.Kind, catalogID)
		} else {
			var hits []domain.CandidateResult
			hits, err = m.Search(ctx, entry.Kind, entry.Name)
			if err == nil && len(hits) > 0 {
				found = &hits[0]
			}
		}

		if err != nil {
			s.log.General().Warn("Metadata lookup failed",
				zap.String("entry", entry.Key().String()),
				zap.String("metadata", m.Name()),
				zap.Error(err))
			continue
		}
		if found != nil {
			entry.ApplyMetadata(found)
			return
		}
	}
}

// Remove stops tracking an entry, optionally deleting its folder
func (s *LibraryService) Remove(ctx context.Context, kind domain.MediaKind, name string, deleteFiles bool) error {
	entry, err := s.repo.Get(kind, name)
	if err != nil {
		return err
	}
	if s.syncs != nil && s.syncs.IsInFlight(kind, name) {
		return fmt.Errorf("%w: %s", domain.ErrSyncInProgress, entry.Key())
	}

	if err := s.repo.Delete(kind, name); err != nil {
		return err
	}

	if deleteFiles {
		if err := s.files.RemoveEntry(entry); err != nil {
			s.log.LogError("Entry removed but its files were not",
				zap.String("entry", entry.Key().String()),
				zap.Error(err))
			return err
		}
	}

	s.log.General().Info("Entry removed",
		zap.String("entry", entry.Key().String()),
		zap.Bool("files_deleted", deleteFiles))
	return nil
}

// Refresh re-reads availability and records a grown total without
// downloading anything
func (s *LibraryService) Refresh(ctx context.Context, kind domain.MediaKind, name string) (*domain.LibraryEntry, error) {
	entry, err := s.repo.Get(kind, name)
	if err != nil {
		return nil, err
	}

	provider, err := s.providers.ForEntry(entry)
	if err != nil {
		return nil, err
	}

	avail, err := provider.Availability(ctx, entry)
	if err != nil {
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return nil, err
	}

	before := totalOf(entry)
	entry.ApplyAvailability(*avail)
	if totalOf(entry) != before {
		if err := s.repo.Update(entry); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
		}
		s.log.General().Info("Episode total updated",
			zap.String("entry", entry.Key().String()),
			zap.Int("total", totalOf(entry)))
	}
	return entry, nil
}

// Episodes lists the downloaded and missing episodes of an entry
func (s *LibraryService) Episodes(kind domain.MediaKind, name string) (*domain.EpisodeList, error) {
	entry, err := s.repo.Get(kind, name)
	if err != nil {
		return nil, err
	}
	return entry.EpisodeList()
}

// UpdateMetadata applies a metadata edit. Download state is left alone.
func (s *LibraryService) UpdateMetadata(ctx context.Context, kind domain.MediaKind, name string, update MetadataUpdate) (*domain.LibraryEntry, error) {
	if update.Rating != nil && (*update.Rating < 0 || *update.Rating > 10) {
		return nil, fmt.Errorf("%w: rating must be between 0 and 10", domain.ErrInvalidRequest)
	}

	entry, err := s.editable(kind, name)
	if err != nil {
		return nil, err
	}

	if update.CatalogID != nil {
		id := strings.TrimSpace(*update.CatalogID)
		entry.CatalogID = id
		if id != "" {
			s.enrich(ctx, entry, id)
		}
	}
	if update.Synopsis != nil {
		entry.Synopsis = *update.Synopsis
	}
	if update.Rating != nil {
		entry.Rating = *update.Rating
	}
	if update.Year != nil {
		entry.Year = *update.Year
	}
	if update.Genres != nil {
		entry.Genres = update.Genres
	}
	if update.PosterURL != nil {
		entry.PosterURL = *update.PosterURL
	}

	if err := s.repo.Update(entry); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	s.log.General().Info("Metadata updated",
		zap.String("entry", entry.Key().String()),
		zap.String("catalog_id", entry.CatalogID))
	return entry, nil
}

// AssociateProvider moves an entry to another catalog page, keeping its
// counters. The first provider of the kind that accepts the URL wins, and
// it must answer an availability check.
func (s *LibraryService) AssociateProvider(ctx context.Context, kind domain.MediaKind, name string, req AssociateRequest) (*domain.LibraryEntry, error) {
	rawURL := strings.TrimSpace(req.URL)
	if rawURL == "" {
		return nil, fmt.Errorf("%w: url is required", domain.ErrInvalidRequest)
	}

	entry, err := s.editable(kind, name)
	if err != nil {
		return nil, err
	}

	var (
		provider  domain.Provider
		candidate *domain.CandidateResult
	)
	lastErr := fmt.Errorf("%w: no provider accepts %s", domain.ErrInvalidRequest, rawURL)
	for _, p := range s.providers.Catalogs(kind) {
		c, err := p.Inspect(ctx, kind, rawURL)
		if err != nil {
			lastErr = err
			continue
		}
		provider, candidate = p, c
		break
	}
	if provider == nil {
		return nil, lastErr
	}

	entry.Provider = provider.Name()
	entry.SourceURL = candidate.URL
	entry.MediaID = candidate.ID
	entry.Slug = candidate.Slug

	avail, err := provider.Availability(ctx, entry)
	if err != nil {
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		return nil, err
	}
	entry.ApplyAvailability(*avail)

	if err := s.repo.Update(entry); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	s.log.General().Info("Provider associated",
		zap.String("entry", entry.Key().String()),
		zap.String("provider", entry.Provider),
		zap.Int("available", avail.Available))
	return entry, nil
}

// editable loads an entry that is not being synced, since a sync writes
// the whole row back
func (s *LibraryService) editable(kind domain.MediaKind, name string) (*domain.LibraryEntry, error) {
	entry, err := s.repo.Get(kind, name)
	if err != nil {
		return nil, err
	}
	if s.syncs != nil && s.syncs.IsInFlight(kind, name) {
		return nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, entry.Key())
	}
	return entry, nil
}

// Search queries every catalog provider serving the kind. It fails only
// when all of them fail.
func (s *LibraryService) Search(ctx context.Context, kind domain.MediaKind, query string) ([]domain.CandidateResult, error) {
	if err := checkQuery(kind, query); err != nil {
		return nil, err
	}

	providers := s.providers.Catalogs(kind)
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: no provider for %s", domain.ErrProviderUnavailable, kind)
	}

	results := []domain.CandidateResult{}
	var lastErr error
	failed := 0
	for _, p := range providers {
		hits, err := p.Search(ctx, kind, query)
		if err != nil {
			failed++
			lastErr = err
			s.log.General().Warn("Catalog search failed",
				zap.String("provider", p.Name()),
				zap.String("query", query),
				zap.Error(err))
			continue
		}
		results = append(results, hits...)
	}
	if failed == len(providers) {
		return nil, lastErr
	}
	return results, nil
}

// SearchMetadata queries the metadata providers for the kind
func (s *LibraryService) SearchMetadata(ctx context.Context, kind domain.MediaKind, query string) ([]domain.CandidateResult, error) {
	if err := checkQuery(kind, query); err != nil {
		return nil, err
	}

	results := []domain.CandidateResult{}
	var lastErr error
	sources := s.providers.Metadata(kind)
	for _, m := range sources {
		hits, err := m.Search(ctx, kind, query)
		if err != nil {
			lastErr = err
			continue
		}
		results = append(results, hits...)
	}
	if len(results) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return results, nil
}

// Get returns one entry
func (s *LibraryService) Get(kind domain.MediaKind, name string) (*domain.LibraryEntry, error) {
	return s.repo.Get(kind, name)
}

// List returns every entry of a kind
func (s *LibraryService) List(kind domain.MediaKind) ([]*domain.LibraryEntry, error) {
	if !kind.IsValid() {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	return s.repo.List(kind)
}

// Stats returns library counters
func (s *LibraryService) Stats() (*domain.LibraryStats, error) {
	return s.repo.Stats()
}

func checkQuery(kind domain.MediaKind, query string) error {
	if !kind.IsValid() {
		return fmt.Errorf("%w: %q", domain.ErrInvalidKind, kind)
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("%w: empty query", domain.ErrInvalidRequest)
	}
	return nil
}
