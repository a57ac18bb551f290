package provider

import (
	"fmt"
	"sync"

	"github.com/yourusername/yuna-go/internal/domain"
)

// Registry maps kinds and provider names to catalog and metadata clients
type Registry struct {
	mu       sync.RWMutex
	catalogs []domain.Provider
	byName   map[string]domain.Provider
	metadata map[domain.MediaKind][]domain.MetadataProvider
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		byName:   make(map[string]domain.Provider),
		metadata: make(map[domain.MediaKind][]domain.MetadataProvider),
	}
}

// NewRegistryFromConfig registers every built-in provider
func NewRegistryFromConfig(cfg *domain.Config) *Registry {
	r := NewRegistry()
	ua := cfg.Downloader.UserAgent
	r.Register(NewAnimeWorld(cfg.Providers, ua))
	r.Register(NewStreamingCommunity(cfg.Providers, ua))

	r.RegisterMetadata(NewJikan(cfg.Metadata), domain.KindAnime)
	if cfg.Metadata.TMDBAPIKey != "" {
		r.RegisterMetadata(NewTMDB(cfg.Metadata), domain.KindSeries, domain.KindFilm)
	}
	return r
}

// Register adds a catalog provider. The first provider registered for a kind
// is its default.
func (r *Registry) Register(p domain.Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogs = append(r.catalogs, p)
	r.byName[p.Name()] = p
}

// RegisterMetadata adds a metadata provider for the given kinds
func (r *Registry) RegisterMetadata(m domain.MetadataProvider, kinds ...domain.MediaKind) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, kind := range kinds {
		r.metadata[kind] = append(r.metadata[kind], m)
	}
}

// ForKind returns the default catalog provider for a kind
func (r *Registry) ForKind(kind domain.MediaKind) (domain.Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, p := range r.catalogs {
		if supports(p, kind) {
			return p, nil
		}
	}
	return nil, fmt.Errorf("%w: no provider for %s", domain.ErrProviderUnavailable, kind)
}

// ForEntry returns the provider the entry was added from, or the default for
// its kind when the entry predates provider tracking
func (r *Registry) ForEntry(entry *domain.LibraryEntry) (domain.Provider, error) {
	if entry.Provider != "" {
		r.mu.RLock()
		p, ok := r.byName[entry.Provider]
		r.mu.RUnlock()
		if ok {
			return p, nil
		}
		return nil, fmt.Errorf("%w: unknown provider %q", domain.ErrProviderUnavailable, entry.Provider)
	}
	return r.ForKind(entry.Kind)
}

// Catalogs lists the providers that serve a kind
func (r *Registry) Catalogs(kind domain.MediaKind) []domain.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []domain.Provider
	for _, p := range r.catalogs {
		if supports(p, kind) {
			out = append(out, p)
		}
	}
	return out
}

// Metadata lists the metadata providers for a kind
func (r *Registry) Metadata(kind domain.MediaKind) []domain.MetadataProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]domain.MetadataProvider(nil), r.metadata[kind]...)
}

func supports(p domain.Provider, kind domain.MediaKind) bool {
	for _, k := range p.Kinds() {
		if k == kind {
			return true
		}
	}
	return false
}
