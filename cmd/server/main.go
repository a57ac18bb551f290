package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/yourusername/yuna-go/api"
	"github.com/yourusername/yuna-go/api/handlers"
	"github.com/yourusername/yuna-go/internal/app"
	"github.com/yourusername/yuna-go/internal/domain"
	"github.com/yourusername/yuna-go/internal/infrastructure"
	"github.com/yourusername/yuna-go/internal/provider"
	"github.com/yourusername/yuna-go/pkg/logger"
)

var (
	configPath = flag.String("config", "", "Path to config file (default ./config/config.yaml or ~/.yuna/config.yaml)")
	envFile    = flag.String("env", ".env", "Path to a .env file with legacy settings")
	daemon     = flag.Bool("daemon", false, "Detach and run the server in the background")
)

func main() {
	flag.Parse()

	if *daemon {
		startAsDaemon()
		return
	}

	runServer()
}

// startAsDaemon re-executes the binary without -daemon in a new session
func startAsDaemon() {
	execPath, err := os.Executable()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to get executable path: %v\n", err)
		os.Exit(1)
	}

	cwd, err := os.Getwd()
	if err != nil {
		cwd = "/"
	}

	args := []string{"-env", *envFile}
	if *configPath != "" {
		args = append(args, "-config", *configPath)
	}

	cmd := exec.Command(execPath, args...)
	cmd.Dir = cwd
	cmd.Env = os.Environ()
	setSysProcAttr(cmd)

	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open %s: %v\n", os.DevNull, err)
		os.Exit(1)
	}
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to start daemon: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	os.Exit(0)
}

func runServer() {
	if err := app.LoadDotEnv(*envFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load %s: %v\n", *envFile, err)
		os.Exit(1)
	}

	config, err := app.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	general, err := logger.New(logger.Config{
		Level:      config.Logging.Level,
		Format:     config.Logging.Format,
		OutputPath: config.Logging.OutputPath,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Category files: download, events, scan, error
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Library.LogsDir,
	}, general)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer multiLog.Close()

	logAdapter := logger.NewLoggerAdapter(multiLog)
	log := logAdapter.General()

	log.Info("Starting Yuna server",
		zap.String("version", handlers.Version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.Bool("prefer_nm3u8", config.Downloader.PreferNm3u8),
		zap.Bool("scanner", config.Scanner.Enabled),
		zap.Duration("scan_interval", config.Scanner.Interval))

	fs := afero.NewOsFs()
	if err := createDirectories(fs, config); err != nil {
		log.Fatal("Failed to create directories", zap.Error(err))
	}

	repo, err := infrastructure.NewSQLiteLibraryRepository(config.Library.DatabasePath)
	if err != nil {
		log.Fatal("Failed to initialize repository", zap.Error(err))
	}
	defer repo.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	status, err := infrastructure.NewStatusStore(ctx, config.Status)
	if err != nil {
		log.Fatal("Failed to initialize status store", zap.String("backend", config.Status.Backend), zap.Error(err))
	}
	if closer, ok := status.(io.Closer); ok {
		defer closer.Close()
	}

	hub := handlers.NewEventHub(log)
	notifier := app.NewNotifier(logAdapter,
		app.NewLogSink(logAdapter),
		infrastructure.NewStatusSink(status),
		hub,
	)
	if config.Telegram.Enabled {
		sink, err := infrastructure.NewTelegramSink(config.Telegram, log)
		if err != nil {
			// Downloads still work without chat notifications
			log.Error("Failed to initialize Telegram notifications", zap.Error(err))
		} else {
			defer sink.Close()
			notifier.Register(sink)
		}
	}
	if config.Notification.Enabled {
		notifier.Register(infrastructure.NewDesktopNotifier(config.Notification, log))
	}

	files := infrastructure.NewLibraryFiles(fs, config.Library)
	downloader := infrastructure.NewHLSDownloaderFromConfig(config.Downloader, fs, config.Library.LogsDir, log)
	providers := provider.NewRegistryFromConfig(config)

	orchestrator := app.NewOrchestrator(
		repo,
		providers,
		files,
		downloader,
		notifier,
		infrastructure.NewLibraryRefresher(config.Jellyfin),
		config.Downloader,
		logAdapter,
	)
	library := app.NewLibraryService(repo, providers, files, orchestrator, config.Metadata, logAdapter)
	scanner := app.NewScanner(repo, orchestrator, config.Scanner, logAdapter)

	if config.Scanner.Enabled {
		if err := scanner.Start(ctx); err != nil {
			log.Fatal("Failed to start scanner", zap.Error(err))
		}
	}

	var auth *app.AuthService
	if config.Auth.Enabled {
		auth, err = app.NewAuthService(config.Auth)
		if err != nil {
			log.Fatal("Failed to initialize auth", zap.Error(err))
		}
		if config.Auth.Secret == "" {
			log.Warn("No auth secret configured, tokens are invalidated on restart")
		}
	} else {
		log.Warn("API auth disabled, mutating routes are open")
	}

	router := api.SetupRouter(api.Dependencies{
		Library: library,
		Syncs:   orchestrator,
		Scanner: scanner,
		Status:  status,
		Events:  hub,
		Logs:    logger.NewLogReader(fs, config.Library.LogsDir),
		Auth:    auth,
		Logger:  log,
	})

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if scanner.IsRunning() {
		if err := scanner.Stop(); err != nil {
			log.Error("Error stopping scanner", zap.Error(err))
		}
	}

	// In-flight syncs are cancelled; partial files are removed by the downloader
	orchestrator.Shutdown()
	hub.Close()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}

	log.Info("Server exited")
	_ = logAdapter.Sync()
}

func createDirectories(fs afero.Fs, config *domain.Config) error {
	dirs := []string{
		config.Library.AnimeDir,
		config.Library.SeriesDir,
		config.Library.MoviesDir,
		config.Library.LogsDir,
		config.Downloader.TempDir,
	}

	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if err := fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}
