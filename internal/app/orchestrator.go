package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/pkg/logger"
)

const refreshTimeout = 30 * time.Second

// ErrOrchestratorStopped is returned for syncs requested after Shutdown
var ErrOrchestratorStopped = errors.New("orchestrator stopped")

// ProviderSource finds the catalog provider that serves an entry
type ProviderSource interface {
	ForEntry(entry *domain.LibraryEntry) (domain.Provider, error)
}

// DestinationPlanner decides where a resolved unit is written
type DestinationPlanner interface {
	Destination(entry *domain.LibraryEntry, stream *domain.ResolvedStream) string
}

// Orchestrator brings library entries up to date: it asks the provider what
// is available, downloads the missing units one at a time and records
// progress in the library
type Orchestrator struct {
	repo       domain.LibraryRepository
	providers  ProviderSource
	files      DestinationPlanner
	downloader domain.Downloader
	publisher  domain.EventPublisher
	refresher  domain.LibraryRefresher
	config     domain.DownloaderConfig
	log        *logger.LoggerAdapter

	mu       sync.Mutex
	inflight map[domain.EntryKey]context.CancelFunc
	wg       sync.WaitGroup
	root     context.Context
	stop     context.CancelFunc
}

// NewOrchestrator creates a new orchestrator
func NewOrchestrator(
	repo domain.LibraryRepository,
	providers ProviderSource,
	files DestinationPlanner,
	downloader domain.Downloader,
	publisher domain.EventPublisher,
	refresher domain.LibraryRefresher,
	config domain.DownloaderConfig,
	log *logger.LoggerAdapter,
) *Orchestrator {
	root, stop := context.WithCancel(context.Background())
	return &Orchestrator{
		repo:       repo,
		providers:  providers,
		files:      files,
		downloader: downloader,
		publisher:  publisher,
		refresher:  refresher,
		config:     config,
		log:        log,
		inflight:   make(map[domain.EntryKey]context.CancelFunc),
		root:       root,
		stop:       stop,
	}
}

// Sync downloads every missing unit of an entry and returns one task per
// attempted unit. Per-unit failures are reported in the tasks, not as an
// error.
func (o *Orchestrator) Sync(ctx context.Context, entry *domain.LibraryEntry) ([]*domain.DownloadTask, error) {
	ctx, release, err := o.reserve(ctx, entry.Key())
	if err != nil {
		return nil, err
	}
	defer release()

	return o.run(ctx, entry.Kind, entry.Name)
}

// StartSync reserves the entry and runs its sync in the background
func (o *Orchestrator) StartSync(kind domain.MediaKind, name string) error {
	if _, err := o.repo.Get(kind, name); err != nil {
		return err
	}

	key := domain.EntryKey{Kind: kind, Name: name}
	ctx, release, err := o.reserve(o.root, key)
	if err != nil {
		return err
	}

	go func() {
		defer release()

		tasks, err := o.run(ctx, kind, name)
		if err != nil {
			o.log.General().Warn("Sync ended with error",
				zap.String("entry", key.String()),
				zap.Error(err))
			return
		}
		o.log.General().Info("Sync finished",
			zap.String("entry", key.String()),
			zap.Int("tasks", len(tasks)),
			zap.Int("succeeded", countSucceeded(tasks)))
	}()
	return nil
}

// Cancel stops the in-flight sync of an entry
func (o *Orchestrator) Cancel(kind domain.MediaKind, name string) error {
	key := domain.EntryKey{Kind: kind, Name: name}

	o.mu.Lock()
	cancel, ok := o.inflight[key]
	o.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: no sync in flight for %s", domain.ErrEntryNotFound, key)
	}
	cancel()
	o.log.General().Info("Sync cancelled", zap.String("entry", key.String()))
	return nil
}

// IsInFlight reports whether the entry is being synced
func (o *Orchestrator) IsInFlight(kind domain.MediaKind, name string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.inflight[domain.EntryKey{Kind: kind, Name: name}]
	return ok
}

// InFlight lists the entries currently being synced
func (o *Orchestrator) InFlight() []domain.EntryKey {
	o.mu.Lock()
	keys := make([]domain.EntryKey, 0, len(o.inflight))
	for k := range o.inflight {
		keys = append(keys, k)
	}
	o.mu.Unlock()

	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}

// Wait blocks until every reserved sync has returned
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown cancels every sync, background or driven by a caller such as the
// scanner, which kills their tool processes, and waits for them. Later syncs
// fail with ErrOrchestratorStopped.
func (o *Orchestrator) Shutdown() {
	o.mu.Lock()
	o.stop()
	o.mu.Unlock()
	o.Wait()
}

func (o *Orchestrator) reserve(parent context.Context, key domain.EntryKey) (context.Context, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.root.Err() != nil {
		return nil, nil, ErrOrchestratorStopped
	}
	if _, busy := o.inflight[key]; busy {
		return nil, nil, fmt.Errorf("%w: %s", domain.ErrSyncInProgress, key)
	}

	ctx, cancel := context.WithCancel(parent)
	detach := context.AfterFunc(o.root, cancel)
	o.inflight[key] = cancel
	o.wg.Add(1)

	release := func() {
		detach()
		o.mu.Lock()
		delete(o.inflight, key)
		o.mu.Unlock()
		cancel()
		o.wg.Done()
	}
	return ctx, release, nil
}

func (o *Orchestrator) run(ctx context.Context, kind domain.MediaKind, name string) ([]*domain.DownloadTask, error) {
	// reload so counters reflect the last persisted state
	entry, err := o.repo.Get(kind, name)
	if err != nil {
		return nil, err
	}
	key := entry.Key()

	provider, err := o.providers.ForEntry(entry)
	if err != nil {
		o.publish(domain.NewProgressEvent(domain.EventDownloadError, key, nil).WithError(err))
		return nil, err
	}

	avail, err := provider.Availability(ctx, entry)
	if err != nil {
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		o.log.LogError("Availability check failed",
			zap.String("entry", key.String()),
			zap.String("provider", provider.Name()),
			zap.Error(err))
		o.publish(domain.NewProgressEvent(domain.EventDownloadError, key, nil).WithError(err))
		return nil, err
	}

	before := totalOf(entry)
	entry.ApplyAvailability(*avail)
	if totalOf(entry) != before {
		if err := o.persist(entry); err != nil {
			o.log.LogError("Failed to record episode total",
				zap.String("entry", key.String()),
				zap.Error(err))
		}
	}

	units := entry.MissingUnits(avail.Available)
	if len(units) == 0 {
		o.log.General().Debug("Entry up to date", zap.String("entry", key.String()))
		return nil, nil
	}

	o.log.General().Info("Syncing entry",
		zap.String("entry", key.String()),
		zap.Int("missing", len(units)),
		zap.Int("available", avail.Available))

	var tasks []*domain.DownloadTask
	succeeded := 0
	for _, episode := range units {
		if ctx.Err() != nil {
			break
		}

		task := o.runUnit(ctx, provider, entry, episode)
		tasks = append(tasks, task)
		if !task.Succeeded() {
			continue
		}
		// the file is on disk even when recording it fails
		succeeded++
		o.record(entry, task)
	}

	if succeeded > 0 && o.refresher != nil {
		refreshCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		if err := o.refresher.Refresh(refreshCtx); err != nil {
			o.log.General().Warn("Media server refresh failed", zap.Error(err))
		}
		cancel()
	}

	if err := ctx.Err(); err != nil {
		return tasks, fmt.Errorf("sync of %s interrupted: %w", key, err)
	}
	return tasks, nil
}

// runUnit resolves and downloads one episode, or the film when episode is nil
func (o *Orchestrator) runUnit(ctx context.Context, provider domain.Provider, entry *domain.LibraryEntry, episode *int) *domain.DownloadTask {
	key := entry.Key()
	task := domain.NewDownloadTask(key, episode)
	o.publish(domain.NewProgressEvent(domain.EventDownloadStart, key, episode))

	stream, err := provider.Resolve(ctx, entry, episode)
	if err != nil {
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			err = fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
		}
		o.fail(task, err)
		return task
	}

	task.StreamURL = stream.URL
	task.Destination = o.files.Destination(entry, stream)

	result := o.downloader.Download(ctx, stream.URL, task.Destination,
		o.config.Options(stream.Headers), o.progressReporter(key, episode))
	if result == nil || !result.Success {
		var derr error = domain.ErrDownloadFailed
		if result != nil && result.Err != nil {
			derr = result.Err
		}
		o.fail(task, derr)
		return task
	}

	task.MarkSuccess(result)
	o.log.General().Info("Download completed",
		zap.String("unit", task.Label()),
		zap.String("tool", task.Tool),
		zap.String("file", task.Destination))
	return task
}

// record advances the counters after a successful unit and only then
// announces the completion. Episodes only move the counter when they extend
// the contiguous downloaded prefix.
func (o *Orchestrator) record(entry *domain.LibraryEntry, task *domain.DownloadTask) {
	advanced := true
	if task.Episode != nil {
		advanced = entry.MarkEpisode(*task.Episode)
	} else {
		entry.MarkFilmDownloaded()
	}

	if !advanced {
		o.log.General().Debug("Episode kept on disk, counter waits for earlier episodes",
			zap.String("unit", task.Label()),
			zap.Int("downloaded", entry.EpisodesDownloaded))
	} else if err := o.persist(entry); err != nil {
		task.MarkFailed(err)
		o.publish(domain.NewProgressEvent(domain.EventDownloadError, task.Entry, task.Episode).WithError(err))
		o.log.LogError("Failed to record download",
			zap.String("unit", task.Label()),
			zap.Error(err))
		return
	}

	o.publish(domain.NewProgressEvent(domain.EventDownloadComplete, task.Entry, task.Episode).WithProgress(100))
}

func (o *Orchestrator) persist(entry *domain.LibraryEntry) error {
	if err := o.repo.Update(entry); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrPersistenceFailed, err)
	}
	return nil
}

func (o *Orchestrator) fail(task *domain.DownloadTask, err error) {
	task.MarkFailed(err)
	o.publish(domain.NewProgressEvent(domain.EventDownloadError, task.Entry, task.Episode).WithError(err))
	o.log.LogError("Download failed",
		zap.String("unit", task.Label()),
		zap.Error(err))
}

func (o *Orchestrator) publish(event domain.ProgressEvent) {
	if o.publisher != nil {
		o.publisher.Publish(event)
	}
}

// progressReporter forwards tool progress at most once per ProgressInterval
func (o *Orchestrator) progressReporter(key domain.EntryKey, episode *int) domain.ProgressFunc {
	var (
		mu   sync.Mutex
		last time.Time
	)
	interval := o.config.ProgressInterval
	return func(pct float64) {
		mu.Lock()
		if time.Since(last) < interval {
			mu.Unlock()
			return
		}
		last = time.Now()
		mu.Unlock()

		o.publish(domain.NewProgressEvent(domain.EventDownloadProgress, key, episode).WithProgress(pct))
	}
}

func totalOf(entry *domain.LibraryEntry) int {
	if entry.EpisodesTotal == nil {
		return -1
	}
	return *entry.EpisodesTotal
}

func countSucceeded(tasks []*domain.DownloadTask) int {
	n := 0
	for _, t := range tasks {
		if t.Succeeded() {
			n++
		}
	}
	return n
}
