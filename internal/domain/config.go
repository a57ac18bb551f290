package domain

import "time"

// Config represents the application configuration
type Config struct {
	Server       ServerConfig       `mapstructure:"server"`
	Library      LibraryConfig      `mapstructure:"library"`
	Downloader   DownloaderConfig   `mapstructure:"downloader"`
	Scanner      ScannerConfig      `mapstructure:"scanner"`
	Providers    ProvidersConfig    `mapstructure:"providers"`
	Metadata     MetadataConfig     `mapstructure:"metadata"`
	Telegram     TelegramConfig     `mapstructure:"telegram"`
	Jellyfin     JellyfinConfig     `mapstructure:"jellyfin"`
	Notification NotificationConfig `mapstructure:"notification"`
	Status       StatusConfig       `mapstructure:"status"`
	Auth         AuthConfig         `mapstructure:"auth"`
	Logging      LoggingConfig      `mapstructure:"logging"`
}

// ServerConfig contains server-related configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LibraryConfig contains the on-disk layout and database location
type LibraryConfig struct {
	AnimeDir     string `mapstructure:"anime_dir"`
	SeriesDir    string `mapstructure:"series_dir"`
	MoviesDir    string `mapstructure:"movies_dir"`
	DatabasePath string `mapstructure:"database_path"`
	LogsDir      string `mapstructure:"logs_dir"`
}

// DirFor returns the base directory for a kind
func (c LibraryConfig) DirFor(kind MediaKind) string {
	switch kind {
	case KindSeries:
		return c.SeriesDir
	case KindFilm:
		return c.MoviesDir
	default:
		return c.AnimeDir
	}
}

// DownloaderConfig contains external downloader settings
type DownloaderConfig struct {
	PreferNm3u8      bool          `mapstructure:"prefer_nm3u8"`
	Nm3u8Binary      string        `mapstructure:"nm3u8_binary"`
	FFmpegBinary     string        `mapstructure:"ffmpeg_binary"`
	ThreadCount      int           `mapstructure:"thread_count"`
	RetryCount       int           `mapstructure:"retry_count"`
	HTTPTimeout      int           `mapstructure:"http_timeout"` // seconds
	ProcessTimeout   time.Duration `mapstructure:"process_timeout"`
	MaxSpeed         string        `mapstructure:"max_speed"`
	TempDir          string        `mapstructure:"temp_dir"`
	UserAgent        string        `mapstructure:"user_agent"`
	ProgressInterval time.Duration `mapstructure:"progress_interval"`
}

// Options converts the configuration into per-call options
func (c DownloaderConfig) Options(headers map[string]string) DownloadOptions {
	merged := map[string]string{}
	if c.UserAgent != "" {
		merged["User-Agent"] = c.UserAgent
	}
	for k, v := range headers {
		merged[k] = v
	}
	return DownloadOptions{
		ThreadCount:    c.ThreadCount,
		RetryCount:     c.RetryCount,
		HTTPTimeout:    time.Duration(c.HTTPTimeout) * time.Second,
		ProcessTimeout: c.ProcessTimeout,
		MaxSpeed:       c.MaxSpeed,
		Headers:        merged,
		TempDir:        c.TempDir,
	}
}

// ScannerConfig contains periodic scanner settings
type ScannerConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// ProvidersConfig contains catalog provider settings
type ProvidersConfig struct {
	AnimeWorldURL         string        `mapstructure:"animeworld_url"`
	StreamingCommunityURL string        `mapstructure:"streamingcommunity_url"`
	Language              string        `mapstructure:"language"`
	RequestSpacing        time.Duration `mapstructure:"request_spacing"`
	Timeout               time.Duration `mapstructure:"timeout"`
}

// MetadataConfig contains metadata API settings
type MetadataConfig struct {
	JikanURL     string        `mapstructure:"jikan_url"`
	JikanSpacing time.Duration `mapstructure:"jikan_spacing"`
	TMDBURL      string        `mapstructure:"tmdb_url"`
	TMDBAPIKey   string        `mapstructure:"tmdb_api_key"`
	TMDBLanguage string        `mapstructure:"tmdb_language"`
	TMDBImageURL string        `mapstructure:"tmdb_image_url"`
	TMDBSpacing  time.Duration `mapstructure:"tmdb_spacing"`
	EnrichOnAdd  bool          `mapstructure:"enrich_on_add"`
}

// TelegramConfig contains Telegram bot notification configuration
type TelegramConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	Token          string        `mapstructure:"token"`
	ChatID         int64         `mapstructure:"chat_id"`
	EditInterval   time.Duration `mapstructure:"edit_interval"`
	ProgressEvents bool          `mapstructure:"progress_events"`
}

// JellyfinConfig contains media server settings
type JellyfinConfig struct {
	URL    string `mapstructure:"url"`
	APIKey string `mapstructure:"api_key"`
}

// Enabled reports whether refresh calls should be made
func (c JellyfinConfig) Enabled() bool {
	return c.URL != "" && c.APIKey != ""
}

// NotificationConfig contains desktop notification configuration
type NotificationConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Sound   bool   `mapstructure:"sound"`
	Method  string `mapstructure:"method"` // osascript, notify-send
}

// StatusConfig selects where the last event per entry is kept
type StatusConfig struct {
	Backend       string        `mapstructure:"backend"` // memory, redis
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// AuthConfig protects the mutating API routes with bearer tokens
type AuthConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Username string        `mapstructure:"username"`
	Password string        `mapstructure:"password"` // plain text or a bcrypt hash
	Secret   string        `mapstructure:"secret"`
	TokenTTL time.Duration `mapstructure:"token_ttl"`
}

// LoggingConfig contains logging-related configuration
type LoggingConfig struct {
	Level      string `mapstructure:"level"`       // debug, info, warn, error
	Format     string `mapstructure:"format"`      // json, console
	OutputPath string `mapstructure:"output_path"` // stdout, stderr, or file path
}

// DefaultUserAgent is sent to providers and downloaders unless overridden
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36"

// DefaultConfig returns a configuration with default values
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Library: LibraryConfig{
			AnimeDir:     "$HOME/Media/Anime",
			SeriesDir:    "$HOME/Media/Series",
			MoviesDir:    "$HOME/Media/Movies",
			DatabasePath: "$HOME/.yuna/yuna.db",
			LogsDir:      "$HOME/.yuna/logs",
		},
		Downloader: DownloaderConfig{
			PreferNm3u8:      true,
			Nm3u8Binary:      "",
			FFmpegBinary:     "",
			ThreadCount:      16,
			RetryCount:       3,
			HTTPTimeout:      100,
			ProcessTimeout:   3 * time.Hour,
			MaxSpeed:         "",
			TempDir:          "",
			UserAgent:        DefaultUserAgent,
			ProgressInterval: 3 * time.Second,
		},
		Scanner: ScannerConfig{
			Enabled:  true,
			Interval: 60 * time.Minute,
		},
		Providers: ProvidersConfig{
			AnimeWorldURL:         "https://www.animeworld.ac",
			StreamingCommunityURL: "https://streamingcommunityz.land",
			Language:              "it",
			RequestSpacing:        500 * time.Millisecond,
			Timeout:               30 * time.Second,
		},
		Metadata: MetadataConfig{
			JikanURL:     "https://api.jikan.moe/v4",
			JikanSpacing: 350 * time.Millisecond,
			TMDBURL:      "https://api.themoviedb.org/3",
			TMDBLanguage: "it-IT",
			TMDBImageURL: "https://image.tmdb.org/t/p/w500",
			TMDBSpacing:  250 * time.Millisecond,
			EnrichOnAdd:  true,
		},
		Telegram: TelegramConfig{
			Enabled:        false,
			EditInterval:   3 * time.Second,
			ProgressEvents: true,
		},
		Notification: NotificationConfig{
			Enabled: false,
			Sound:   true,
			Method:  "notify-send",
		},
		Status: StatusConfig{
			Backend: "memory",
			TTL:     24 * time.Hour,
		},
		Auth: AuthConfig{
			Enabled:  false,
			Username: "admin",
			TokenTTL: 24 * time.Hour,
		},
		Logging: LoggingConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stdout",
		},
	}
}
