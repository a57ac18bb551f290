package app

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/pkg/logger"
)

func testLogger() *logger.LoggerAdapter {
	return logger.NewSingleLoggerAdapter(nil)
}

func intPtr(i int) *int { return &i }

// mockLibraryRepo implements domain.LibraryRepository over a map. Entries
// are copied in and out like rows.
type mockLibraryRepo struct {
	mu        sync.Mutex
	entries   map[domain.EntryKey]domain.LibraryEntry
	updates   int
	updateErr error
	listErr   map[domain.MediaKind]error
}

func newMockLibraryRepo(entries ...*domain.LibraryEntry) *mockLibraryRepo {
	r := &mockLibraryRepo{entries: make(map[domain.EntryKey]domain.LibraryEntry)}
	for _, e := range entries {
		r.entries[e.Key()] = *e
	}
	return r
}

func (m *mockLibraryRepo) Create(entry *domain.LibraryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[entry.Key()]; ok {
		return fmt.Errorf("%w: %s", domain.ErrEntryExists, entry.Key())
	}
	entry.ID = uint(len(m.entries) + 1)
	m.entries[entry.Key()] = *entry
	return nil
}

func (m *mockLibraryRepo) Update(entry *domain.LibraryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return m.updateErr
	}
	if _, ok := m.entries[entry.Key()]; !ok {
		return domain.ErrEntryNotFound
	}
	m.updates++
	m.entries[entry.Key()] = *entry
	return nil
}

func (m *mockLibraryRepo) Upsert(entry *domain.LibraryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.Key()] = *entry
	return nil
}

func (m *mockLibraryRepo) Delete(kind domain.MediaKind, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.EntryKey{Kind: kind, Name: name}
	if _, ok := m.entries[key]; !ok {
		return domain.ErrEntryNotFound
	}
	delete(m.entries, key)
	return nil
}

func (m *mockLibraryRepo) Get(kind domain.MediaKind, name string) (*domain.LibraryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[domain.EntryKey{Kind: kind, Name: name}]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", domain.ErrEntryNotFound, kind, name)
	}
	return &e, nil
}

func (m *mockLibraryRepo) List(kind domain.MediaKind) ([]*domain.LibraryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.listErr[kind]; err != nil {
		return nil, err
	}
	var out []*domain.LibraryEntry
	for _, e := range m.entries {
		if e.Kind == kind {
			e := e
			out = append(out, &e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *mockLibraryRepo) ListAll() ([]*domain.LibraryEntry, error) {
	var out []*domain.LibraryEntry
	for _, kind := range domain.ScanOrder {
		entries, _ := m.List(kind)
		out = append(out, entries...)
	}
	return out, nil
}

func (m *mockLibraryRepo) Stats() (*domain.LibraryStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stats := &domain.LibraryStats{}
	for _, e := range m.entries {
		switch e.Kind {
		case domain.KindAnime:
			stats.Anime++
		case domain.KindSeries:
			stats.Series++
		case domain.KindFilm:
			stats.Films++
			if e.Downloaded {
				stats.FilmsDownloaded++
			}
		}
		stats.EpisodesDownloaded += int64(e.EpisodesDownloaded)
	}
	return stats, nil
}

func (m *mockLibraryRepo) stored(kind domain.MediaKind, name string) domain.LibraryEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.entries[domain.EntryKey{Kind: kind, Name: name}]
}

// mockProvider implements domain.Provider with scripted answers
type mockProvider struct {
	name        string
	kinds       []domain.MediaKind
	available   int
	total       *int
	availErr    error
	resolveErr  map[int]error
	candidate   *domain.CandidateResult
	inspectErr  error
	searchHits  []domain.CandidateResult
	searchErr   error
	resolveHook func(ctx context.Context, episode *int)

	mu       sync.Mutex
	resolved []int
}

func (p *mockProvider) Name() string { return p.name }
func (p *mockProvider) Kinds() []domain.MediaKind { return p.kinds }

func (p *mockProvider) Search(context.Context, domain.MediaKind, string) ([]domain.CandidateResult, error) {
	return p.searchHits, p.searchErr
}

func (p *mockProvider) Inspect(context.Context, domain.MediaKind, string) (*domain.CandidateResult, error) {
	if p.inspectErr != nil {
		return nil, p.inspectErr
	}
	c := *p.candidate
	return &c, nil
}

func (p *mockProvider) Availability(context.Context, *domain.LibraryEntry) (*domain.Availability, error) {
	if p.availErr != nil {
		return nil, p.availErr
	}
	return &domain.Availability{Available: p.available, Total: p.total}, nil
}

func (p *mockProvider) Resolve(ctx context.Context, entry *domain.LibraryEntry, episode *int) (*domain.ResolvedStream, error) {
	n := 0
	if episode != nil {
		n = *episode
	}
	p.mu.Lock()
	p.resolved = append(p.resolved, n)
	p.mu.Unlock()

	if p.resolveHook != nil {
		p.resolveHook(ctx, episode)
	}
	if err := p.resolveErr[n]; err != nil {
		return nil, err
	}
	return &domain.ResolvedStream{
		URL:     fmt.Sprintf("https://cdn.example/%s/%d.m3u8", entry.Name, n),
		Headers: map[string]string{"Referer": "https://cdn.example/"},
		Episode: episode,
	}, nil
}

func (p *mockProvider) resolvedEpisodes() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.resolved...)
}

// mockMetadata implements domain.MetadataProvider
type mockMetadata struct {
	hits     []domain.CandidateResult
	err      error
	lookups  []string
	searches []string
}

func (m *mockMetadata) Name() string { return "mock-metadata" }

func (m *mockMetadata) Search(_ context.Context, _ domain.MediaKind, query string) ([]domain.CandidateResult, error) {
	m.searches = append(m.searches, query)
	return m.hits, m.err
}

func (m *mockMetadata) Lookup(_ context.Context, _ domain.MediaKind, id string) (*domain.CandidateResult, error) {
	m.lookups = append(m.lookups, id)
	if m.err != nil {
		return nil, m.err
	}
	if len(m.hits) == 0 {
		return nil, nil
	}
	hit := m.hits[0]
	hit.ID = id
	return &hit, nil
}

// mockProviders implements CatalogSource
type mockProviders struct {
	catalog  domain.Provider
	metadata []domain.MetadataProvider
}

func (m *mockProviders) ForEntry(*domain.LibraryEntry) (domain.Provider, error) {
	if m.catalog == nil {
		return nil, domain.ErrProviderUnavailable
	}
	return m.catalog, nil
}

func (m *mockProviders) ForKind(domain.MediaKind) (domain.Provider, error) {
	return m.ForEntry(nil)
}

func (m *mockProviders) Catalogs(domain.MediaKind) []domain.Provider {
	if m.catalog == nil {
		return nil
	}
	return []domain.Provider{m.catalog}
}

func (m *mockProviders) Metadata(domain.MediaKind) []domain.MetadataProvider {
	return m.metadata
}

// mockDownloader implements domain.Downloader. Destinations listed in fail
// report failure.
type mockDownloader struct {
	mu    sync.Mutex
	fail  map[string]bool
	calls []string
	hook  func(ctx context.Context, destination string, onProgress domain.ProgressFunc)
}

func (d *mockDownloader) Download(ctx context.Context, streamURL, destination string, opts domain.DownloadOptions, onProgress domain.ProgressFunc) *domain.DownloadResult {
	d.mu.Lock()
	d.calls = append(d.calls, destination)
	failed := d.fail[destination]
	d.mu.Unlock()

	if d.hook != nil {
		d.hook(ctx, destination, onProgress)
	}
	if err := ctx.Err(); err != nil {
		return &domain.DownloadResult{Err: err}
	}
	if failed {
		return &domain.DownloadResult{Tool: "ffmpeg", Err: fmt.Errorf("%w: exit status 1", domain.ErrDownloadFailed)}
	}
	if onProgress != nil {
		onProgress(50)
	}
	return &domain.DownloadResult{Success: true, Path: destination, Bytes: 1024, Tool: "n_m3u8dl"}
}

func (d *mockDownloader) destinations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// mockPlanner implements DestinationPlanner
type mockPlanner struct{}

func (mockPlanner) Destination(entry *domain.LibraryEntry, stream *domain.ResolvedStream) string {
	if stream.Episode == nil {
		return fmt.Sprintf("/library/%s/%s.mp4", entry.Name, entry.Name)
	}
	return fmt.Sprintf("/library/%s/%d.mp4", entry.Name, *stream.Episode)
}

// recordingPublisher implements domain.EventPublisher
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.ProgressEvent
}

func (p *recordingPublisher) Publish(event domain.ProgressEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *recordingPublisher) ofType(t domain.EventType) []domain.ProgressEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []domain.ProgressEvent
	for _, e := range p.events {
		if e.Type == t {
			out = append(out, e)
		}
	}
	return out
}

// countingRefresher implements domain.LibraryRefresher
type countingRefresher struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (r *countingRefresher) Refresh(context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	return r.err
}

func (r *countingRefresher) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

// mockEntryFiles implements EntryFiles
type mockEntryFiles struct {
	existing  int
	ensured   []string
	removed   []string
	removeErr error
}

func (f *mockEntryFiles) EnsureEntryDir(entry *domain.LibraryEntry) (string, error) {
	f.ensured = append(f.ensured, entry.Name)
	return "/library/" + entry.Name, nil
}

func (f *mockEntryFiles) RemoveEntry(entry *domain.LibraryEntry) error {
	f.removed = append(f.removed, entry.Name)
	return f.removeErr
}

func (f *mockEntryFiles) CountEpisodes(*domain.LibraryEntry) (int, error) {
	return f.existing, nil
}
