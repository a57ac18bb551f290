//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/api"
	"github.com/yourusername/yuna-go/api/handlers"
	"github.com/yourusername/yuna-go/internal/app"
	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/internal/infrastructure"
	"github.com/yourusername/yuna-go/internal/provider"
	"github.com/yourusername/yuna-go/pkg/logger"
)

// catalogStub serves a fixed number of released episodes
type catalogStub struct {
	mu        sync.Mutex
	available int
}

func (c *catalogStub) Name() string { return "stub" }
func (c *catalogStub) Kinds() []domain.MediaKind { return []domain.MediaKind{domain.KindAnime} }

func (c *catalogStub) setAvailable(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.available = n
}

func (c *catalogStub) Search(_ context.Context, kind domain.MediaKind, query string) ([]domain.CandidateResult, error) {
	return []domain.CandidateResult{{Provider: "stub", Kind: kind, ID: "frieren", Name: query}}, nil
}

func (c *catalogStub) Inspect(_ context.Context, kind domain.MediaKind, rawURL string) (*domain.CandidateResult, error) {
	return &domain.CandidateResult{Provider: "stub", Kind: kind, ID: "frieren", Slug: "frieren", Name: "Sousou no Frieren", URL: rawURL}, nil
}

func (c *catalogStub) Availability(context.Context, *domain.LibraryEntry) (*domain.Availability, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	total := 28
	return &domain.Availability{Available: c.available, Total: &total}, nil
}

func (c *catalogStub) Resolve(_ context.Context, _ *domain.LibraryEntry, episode *int) (*domain.ResolvedStream, error) {
	return &domain.ResolvedStream{URL: fmt.Sprintf("https://cdn.example/frieren/%d.m3u8", *episode), Episode: episode}, nil
}

// writeStrategy stands in for the external tools and writes a small file
type writeStrategy struct {
	fs afero.Fs
}

func (s *writeStrategy) Name() string { return "stub-tool" }
func (s *writeStrategy) Available() error { return nil }

func (s *writeStrategy) Attempt(_ context.Context, req *infrastructure.AttemptRequest) error {
	req.OnProgress(50)
	return afero.WriteFile(s.fs, req.Destination, []byte(req.URL), 0644)
}

type stack struct {
	server  *httptest.Server
	fs      afero.Fs
	catalog *catalogStub
	config  domain.LibraryConfig
}

func setupStack(t *testing.T) *stack {
	t.Helper()

	dir := t.TempDir()
	repo, err := infrastructure.NewSQLiteLibraryRepository(filepath.Join(dir, "yuna.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	fs := afero.NewMemMapFs()
	libraryConfig := domain.LibraryConfig{
		AnimeDir:  "/media/anime",
		SeriesDir: "/media/series",
		MoviesDir: "/media/movies",
		LogsDir:   "/logs",
	}
	files := infrastructure.NewLibraryFiles(fs, libraryConfig)

	catalog := &catalogStub{available: 3}
	registry := provider.NewRegistry()
	registry.Register(catalog)

	log := logger.NewSingleLoggerAdapter(zap.NewNop())
	status := infrastructure.NewMemoryStatusStore()
	hub := handlers.NewEventHub(zap.NewNop())
	notifier := app.NewNotifier(log, infrastructure.NewStatusSink(status), hub)

	downloader := infrastructure.NewHLSDownloader(fs, libraryConfig.LogsDir, zap.NewNop(), &writeStrategy{fs: fs})
	orchestrator := app.NewOrchestrator(repo, registry, files, downloader, notifier,
		infrastructure.NewLibraryRefresher(domain.JellyfinConfig{}), domain.DefaultConfig().Downloader, log)
	t.Cleanup(orchestrator.Shutdown)

	library := app.NewLibraryService(repo, registry, files, orchestrator, domain.MetadataConfig{}, log)
	scanner := app.NewScanner(repo, orchestrator, domain.ScannerConfig{Interval: time.Hour}, log)

	router := api.SetupRouter(api.Dependencies{
		Library: library,
		Syncs:   orchestrator,
		Scanner: scanner,
		Status:  status,
		Events:  hub,
		Logs:    logger.NewLogReader(fs, libraryConfig.LogsDir),
		Logger:  zap.NewNop(),
	})
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &stack{server: server, fs: fs, catalog: catalog, config: libraryConfig}
}

func (s *stack) request(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		require.NoError(t, err)
	}
	req, err := http.NewRequest(method, s.server.URL+path, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *stack) entry(t *testing.T, name string) domain.LibraryEntry {
	t.Helper()
	resp := s.request(t, http.MethodGet, "/api/anime/"+name, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var entry domain.LibraryEntry
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&entry))
	return entry
}

func (s *stack) waitIdle(t *testing.T) {
	t.Helper()
	require.Eventually(t, func() bool {
		resp := s.request(t, http.MethodGet, "/api/downloads", nil)
		var body struct {
			Count int `json:"count"`
		}
		return json.NewDecoder(resp.Body).Decode(&body) == nil && body.Count == 0
	}, 5*time.Second, 20*time.Millisecond)
}

func TestLibraryFlow_AddSyncAndScan(t *testing.T) {
	s := setupStack(t)

	resp := s.request(t, http.MethodPost, "/api/anime", map[string]string{
		"url":  "https://aw.example/play/frieren",
		"name": "Frieren",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp = s.request(t, http.MethodPost, "/api/anime", map[string]string{"url": "https://aw.example/play/frieren", "name": "Frieren"})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	resp = s.request(t, http.MethodPost, "/api/anime/Frieren/download", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	s.waitIdle(t)

	entry := s.entry(t, "Frieren")
	assert.Equal(t, 3, entry.EpisodesDownloaded)
	require.NotNil(t, entry.EpisodesTotal)
	assert.Equal(t, 28, *entry.EpisodesTotal)

	for ep := 1; ep <= 3; ep++ {
		path := filepath.Join(s.config.AnimeDir, "Frieren", fmt.Sprintf("Frieren - Episode %d.mp4", ep))
		exists, err := afero.Exists(s.fs, path)
		require.NoError(t, err)
		assert.True(t, exists, path)
	}

	resp = s.request(t, http.MethodGet, "/api/anime/Frieren/download/status", nil)
	var status handlers.StatusResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	require.NotNil(t, status.LastEvent)
	assert.Equal(t, domain.EventDownloadComplete, status.LastEvent.Type)
	require.NotNil(t, status.LastEvent.Episode)
	assert.Equal(t, 3, *status.LastEvent.Episode)

	// Two new episodes are picked up by the next scanner pass
	s.catalog.setAvailable(5)
	resp = s.request(t, http.MethodPost, "/api/scan", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)

	require.Eventually(t, func() bool {
		return s.entry(t, "Frieren").EpisodesDownloaded == 5
	}, 5*time.Second, 20*time.Millisecond)

	resp = s.request(t, http.MethodGet, "/api/stats", nil)
	var stats domain.LibraryStats
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&stats))
	assert.Equal(t, int64(1), stats.Anime)
	assert.Equal(t, int64(5), stats.EpisodesDownloaded)
}

func TestLibraryFlow_RemoveDeletesFiles(t *testing.T) {
	s := setupStack(t)

	resp := s.request(t, http.MethodPost, "/api/anime", map[string]string{"url": "https://aw.example/play/frieren", "name": "Frieren"})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	resp = s.request(t, http.MethodPost, "/api/anime/Frieren/download", nil)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	s.waitIdle(t)

	resp = s.request(t, http.MethodDelete, "/api/anime/Frieren?delete_files=true", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	exists, err := afero.DirExists(s.fs, filepath.Join(s.config.AnimeDir, "Frieren"))
	require.NoError(t, err)
	assert.False(t, exists)

	resp = s.request(t, http.MethodGet, "/api/anime/Frieren", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
