package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/yuna-go/internal/domain"
)

type orchestratorFixture struct {
	repo       *mockLibraryRepo
	provider   *mockProvider
	downloader *mockDownloader
	events     *recordingPublisher
	refresher  *countingRefresher
	orch       *Orchestrator
}

func newOrchestratorFixture(entry *domain.LibraryEntry, provider *mockProvider) *orchestratorFixture {
	f := &orchestratorFixture{
		repo:       newMockLibraryRepo(entry),
		provider:   provider,
		downloader: &mockDownloader{fail: map[string]bool{}},
		events:     &recordingPublisher{},
		refresher:  &countingRefresher{},
	}
	f.orch = NewOrchestrator(
		f.repo,
		&mockProviders{catalog: provider},
		mockPlanner{},
		f.downloader,
		f.events,
		f.refresher,
		domain.DownloaderConfig{ThreadCount: 4},
		testLogger(),
	)
	return f
}

func animeEntry(name string, downloaded int, total *int) *domain.LibraryEntry {
	return &domain.LibraryEntry{
		Kind:               domain.KindAnime,
		Name:               name,
		Provider:           "mock",
		EpisodesDownloaded: downloaded,
		EpisodesTotal:      total,
	}
}

func taskEpisodes(tasks []*domain.DownloadTask) []int {
	var out []int
	for _, t := range tasks {
		if t.Episode != nil {
			out = append(out, *t.Episode)
		}
	}
	return out
}

func TestOrchestrator_SyncDownloadsMissingEpisodesInOrder(t *testing.T) {
	entry := animeEntry("Frieren", 2, intPtr(5))
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", available: 5, total: intPtr(5)})

	tasks, err := f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, []int{3, 4, 5}, taskEpisodes(tasks))
	for _, task := range tasks {
		assert.True(t, task.Succeeded(), task.Label())
		assert.Equal(t, "n_m3u8dl", task.Tool)
	}
	assert.Equal(t, []string{
		"/library/Frieren/3.mp4",
		"/library/Frieren/4.mp4",
		"/library/Frieren/5.mp4",
	}, f.downloader.destinations())

	stored := f.repo.stored(domain.KindAnime, "Frieren")
	assert.Equal(t, 5, stored.EpisodesDownloaded)
	require.NotNil(t, stored.EpisodesTotal)
	assert.Equal(t, 5, *stored.EpisodesTotal)

	assert.Len(t, f.events.ofType(domain.EventDownloadStart), 3)
	assert.Len(t, f.events.ofType(domain.EventDownloadComplete), 3)
	assert.NotEmpty(t, f.events.ofType(domain.EventDownloadProgress))
	assert.Equal(t, 1, f.refresher.count())
	assert.False(t, f.orch.IsInFlight(domain.KindAnime, "Frieren"))
}

func TestOrchestrator_SecondSyncIsNoop(t *testing.T) {
	entry := animeEntry("Frieren", 2, intPtr(5))
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", available: 5, total: intPtr(5)})

	_, err := f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)

	// the caller's copy is stale, the orchestrator reloads the entry
	tasks, err := f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)
	assert.Empty(t, tasks)
	assert.Len(t, f.downloader.destinations(), 3)
	assert.Equal(t, 1, f.refresher.count())
}

func TestOrchestrator_UnknownTotalIsLearned(t *testing.T) {
	entry := animeEntry("Dandadan", 0, nil)
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", available: 1})

	tasks, err := f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, 1, *tasks[0].Episode)

	stored := f.repo.stored(domain.KindAnime, "Dandadan")
	assert.Equal(t, 1, stored.EpisodesDownloaded)
	require.NotNil(t, stored.EpisodesTotal)
	assert.Equal(t, 1, *stored.EpisodesTotal)
}

func TestOrchestrator_FailedUnitDoesNotStopOthers(t *testing.T) {
	entry := animeEntry("Mushishi", 0, intPtr(5))
	provider := &mockProvider{
		name:       "mock",
		available:  5,
		total:      intPtr(5),
		resolveErr: map[int]error{3: errors.New("embed page changed")},
	}
	f := newOrchestratorFixture(entry, provider)

	tasks, err := f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4, 5}, taskEpisodes(tasks))
	assert.Equal(t, []int{1, 2, 3, 4, 5}, provider.resolvedEpisodes())
	assert.Equal(t, domain.OutcomeFailed, tasks[2].Outcome)
	assert.Contains(t, tasks[2].Error, "embed page changed")
	assert.Equal(t, []string{
		"/library/Mushishi/1.mp4",
		"/library/Mushishi/2.mp4",
		"/library/Mushishi/4.mp4",
		"/library/Mushishi/5.mp4",
	}, f.downloader.destinations())

	// 4 and 5 stay on disk, the counter only covers the contiguous prefix
	stored := f.repo.stored(domain.KindAnime, "Mushishi")
	assert.Equal(t, 2, stored.EpisodesDownloaded)

	errorsSeen := f.events.ofType(domain.EventDownloadError)
	require.Len(t, errorsSeen, 1)
	assert.Equal(t, 3, *errorsSeen[0].Episode)
	assert.Equal(t, 1, f.refresher.count())
}

func TestOrchestrator_DownloadFailureMarksTask(t *testing.T) {
	entry := animeEntry("Frieren", 0, intPtr(2))
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", available: 2, total: intPtr(2)})
	f.downloader.fail["/library/Frieren/1.mp4"] = true

	tasks, err := f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)
	require.Len(t, tasks, 2)

	assert.False(t, tasks[0].Succeeded())
	assert.Contains(t, tasks[0].Error, "download failed")
	assert.True(t, tasks[1].Succeeded())
	assert.Equal(t, 0, f.repo.stored(domain.KindAnime, "Frieren").EpisodesDownloaded)
}

func TestOrchestrator_AvailabilityFailure(t *testing.T) {
	entry := animeEntry("Frieren", 0, nil)
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", availErr: errors.New("503 from catalog")})

	tasks, err := f.orch.Sync(context.Background(), entry)
	assert.ErrorIs(t, err, domain.ErrProviderUnavailable)
	assert.Empty(t, tasks)
	assert.Len(t, f.events.ofType(domain.EventDownloadError), 1)
	assert.Empty(t, f.downloader.destinations())
	assert.Equal(t, 0, f.refresher.count())
}

func TestOrchestrator_PersistenceFailureKeepsGoing(t *testing.T) {
	entry := animeEntry("Frieren", 2, intPtr(5))
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", available: 5, total: intPtr(5)})
	f.repo.updateErr = errors.New("database is locked")

	tasks, err := f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)

	require.Len(t, tasks, 3)
	for _, task := range tasks {
		assert.Equal(t, domain.OutcomeFailed, task.Outcome)
		assert.Contains(t, task.Error, domain.ErrPersistenceFailed.Error())
	}
	assert.Len(t, f.downloader.destinations(), 3)

	// nothing is announced as done when it could not be recorded
	assert.Empty(t, f.events.ofType(domain.EventDownloadComplete))
	failures := f.events.ofType(domain.EventDownloadError)
	require.Len(t, failures, 3)
	assert.Equal(t, 3, *failures[0].Episode)
	assert.Contains(t, failures[0].Error, domain.ErrPersistenceFailed.Error())
}

func TestOrchestrator_OutOfOrderEpisodeStillCompletes(t *testing.T) {
	entry := animeEntry("Mushishi", 0, intPtr(2))
	provider := &mockProvider{
		name:       "mock",
		available:  2,
		total:      intPtr(2),
		resolveErr: map[int]error{1: errors.New("embed page changed")},
	}
	f := newOrchestratorFixture(entry, provider)

	_, err := f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)

	done := f.events.ofType(domain.EventDownloadComplete)
	require.Len(t, done, 1)
	assert.Equal(t, 2, *done[0].Episode)
	assert.Equal(t, 0, f.repo.stored(domain.KindAnime, "Mushishi").EpisodesDownloaded)
}

func TestOrchestrator_FilmDownloadedOnce(t *testing.T) {
	entry := &domain.LibraryEntry{Kind: domain.KindFilm, Name: "Perfect Days", Provider: "mock"}
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", available: 1})

	tasks, err := f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Nil(t, tasks[0].Episode)
	assert.Equal(t, []string{"/library/Perfect Days/Perfect Days.mp4"}, f.downloader.destinations())
	assert.True(t, f.repo.stored(domain.KindFilm, "Perfect Days").Downloaded)

	tasks, err = f.orch.Sync(context.Background(), entry)
	require.NoError(t, err)
	assert.Empty(t, tasks)
}

func TestOrchestrator_RejectsConcurrentSync(t *testing.T) {
	entry := animeEntry("Frieren", 0, intPtr(1))
	started := make(chan struct{})
	release := make(chan struct{})
	provider := &mockProvider{
		name:      "mock",
		available: 1,
		total:     intPtr(1),
		resolveHook: func(context.Context, *int) {
			close(started)
			<-release
		},
	}
	f := newOrchestratorFixture(entry, provider)

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Sync(context.Background(), entry)
		done <- err
	}()
	<-started

	assert.True(t, f.orch.IsInFlight(domain.KindAnime, "Frieren"))
	assert.Equal(t, []domain.EntryKey{entry.Key()}, f.orch.InFlight())

	_, err := f.orch.Sync(context.Background(), entry)
	assert.ErrorIs(t, err, domain.ErrSyncInProgress)
	assert.ErrorIs(t, f.orch.StartSync(domain.KindAnime, "Frieren"), domain.ErrSyncInProgress)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, f.orch.IsInFlight(domain.KindAnime, "Frieren"))
}

func TestOrchestrator_StartSyncAndCancel(t *testing.T) {
	entry := animeEntry("Frieren", 0, intPtr(3))
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", available: 3, total: intPtr(3)})

	started := make(chan struct{}, 1)
	f.downloader.hook = func(ctx context.Context, _ string, _ domain.ProgressFunc) {
		started <- struct{}{}
		<-ctx.Done()
	}

	require.NoError(t, f.orch.StartSync(domain.KindAnime, "Frieren"))
	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("sync never reached the downloader")
	}

	require.NoError(t, f.orch.Cancel(domain.KindAnime, "Frieren"))
	f.orch.Wait()

	assert.False(t, f.orch.IsInFlight(domain.KindAnime, "Frieren"))
	assert.Len(t, f.downloader.destinations(), 1)
	assert.Equal(t, 0, f.repo.stored(domain.KindAnime, "Frieren").EpisodesDownloaded)
	assert.Len(t, f.events.ofType(domain.EventDownloadError), 1)
	assert.Equal(t, 0, f.refresher.count())

	assert.ErrorIs(t, f.orch.Cancel(domain.KindAnime, "Frieren"), domain.ErrEntryNotFound)
}

func TestOrchestrator_StartSyncUnknownEntry(t *testing.T) {
	f := newOrchestratorFixture(animeEntry("Frieren", 0, nil), &mockProvider{name: "mock"})
	assert.ErrorIs(t, f.orch.StartSync(domain.KindAnime, "Nope"), domain.ErrEntryNotFound)
}

func TestOrchestrator_ShutdownStopsBackgroundSyncs(t *testing.T) {
	entry := animeEntry("Frieren", 0, intPtr(2))
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", available: 2, total: intPtr(2)})

	started := make(chan struct{}, 2)
	f.downloader.hook = func(ctx context.Context, _ string, _ domain.ProgressFunc) {
		started <- struct{}{}
		<-ctx.Done()
	}

	require.NoError(t, f.orch.StartSync(domain.KindAnime, "Frieren"))
	<-started
	f.orch.Shutdown()

	assert.Empty(t, f.orch.InFlight())
	assert.Len(t, f.downloader.destinations(), 1)
}

func TestOrchestrator_ShutdownCancelsCallerSyncs(t *testing.T) {
	entry := animeEntry("Frieren", 0, intPtr(2))
	f := newOrchestratorFixture(entry, &mockProvider{name: "mock", available: 2, total: intPtr(2)})

	started := make(chan struct{}, 2)
	f.downloader.hook = func(ctx context.Context, _ string, _ domain.ProgressFunc) {
		started <- struct{}{}
		<-ctx.Done()
	}

	done := make(chan error, 1)
	go func() {
		_, err := f.orch.Sync(context.Background(), entry)
		done <- err
	}()
	<-started

	shutdown := make(chan struct{})
	go func() {
		f.orch.Shutdown()
		close(shutdown)
	}()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("caller sync was not cancelled by Shutdown")
	}
	select {
	case <-shutdown:
	case <-time.After(5 * time.Second):
		t.Fatal("Shutdown did not return")
	}

	assert.Empty(t, f.orch.InFlight())
	assert.Len(t, f.downloader.destinations(), 1)

	_, err := f.orch.Sync(context.Background(), entry)
	assert.ErrorIs(t, err, ErrOrchestratorStopped)
	assert.ErrorIs(t, f.orch.StartSync(domain.KindAnime, "Frieren"), ErrOrchestratorStopped)
}
