package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/yourusername/yuna-go/internal/domain"
)

// configKeys binds every setting to its YUNA_ variable and to the older
// unprefixed names still found in existing deployments
var configKeys = map[string][]string{
	"server.host": nil,
	"server.port": nil,

	"library.anime_dir":     {"DESTINATION_FOLDER"},
	"library.series_dir":    {"SERIES_FOLDER"},
	"library.movies_dir":    {"MOVIES_FOLDER"},
	"library.database_path": nil,
	"library.logs_dir":      nil,

	"downloader.prefer_nm3u8":      {"PREFER_NM3U8"},
	"downloader.nm3u8_binary":      {"NM3U8_BINARY_PATH"},
	"downloader.ffmpeg_binary":     nil,
	"downloader.thread_count":      {"NM3U8_THREAD_COUNT"},
	"downloader.retry_count":       nil,
	"downloader.http_timeout":      {"NM3U8_TIMEOUT"},
	"downloader.process_timeout":   nil,
	"downloader.max_speed":         {"NM3U8_MAX_SPEED"},
	"downloader.temp_dir":          {"NM3U8_TEMP_DIR"},
	"downloader.user_agent":        nil,
	"downloader.progress_interval": nil,

	"scanner.enabled":  nil,
	"scanner.interval": nil,

	"providers.animeworld_url":         {"BASE_URL"},
	"providers.streamingcommunity_url": {"SC_BASE_URL"},
	"providers.language":               nil,
	"providers.request_spacing":        nil,
	"providers.timeout":                nil,

	"metadata.jikan_url":      nil,
	"metadata.jikan_spacing":  nil,
	"metadata.tmdb_url":       nil,
	"metadata.tmdb_api_key":   {"TMDB_API_KEY"},
	"metadata.tmdb_language":  nil,
	"metadata.tmdb_image_url": nil,
	"metadata.tmdb_spacing":   nil,
	"metadata.enrich_on_add":  nil,

	"telegram.enabled":         nil,
	"telegram.token":           {"TELEGRAM_TOKEN"},
	"telegram.chat_id":         {"TELEGRAM_CHAT_ID"},
	"telegram.edit_interval":   nil,
	"telegram.progress_events": nil,

	"jellyfin.url":     {"JELLYFIN_URL"},
	"jellyfin.api_key": {"JELLYFIN_API_KEY"},

	"notification.enabled": nil,
	"notification.sound":   nil,
	"notification.method":  nil,

	"status.backend":        nil,
	"status.redis_addr":     {"REDIS_ADDR"},
	"status.redis_password": nil,
	"status.redis_db":       nil,
	"status.ttl":            nil,

	"auth.enabled":   nil,
	"auth.username":  {"YUNA_USERNAME"},
	"auth.password":  {"YUNA_PASSWORD"},
	"auth.secret":    {"JWT_SECRET"},
	"auth.token_ttl": nil,

	"logging.level":       nil,
	"logging.format":      nil,
	"logging.output_path": nil,
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped and existing variables win.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("failed to load %s: %w", p, err)
		}
	}
	return nil
}

// LoadConfig loads configuration from file and environment
func LoadConfig(configPath string) (*domain.Config, error) {
	// Start with default config
	config := domain.DefaultConfig()

	// Set up viper
	v := viper.New()
	v.SetConfigType("yaml")

	// If config path is provided, use it
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.AddConfigPath("./config")
		v.AddConfigPath("$HOME/.yuna")
	}

	// Read environment variables
	v.SetEnvPrefix("YUNA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := bindEnv(v); err != nil {
		return nil, err
	}

	// Try to read config file
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, use defaults
	}

	// Unmarshal into config struct
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyUpdateTime(config); err != nil {
		return nil, err
	}
	if err := applyTokenHours(config); err != nil {
		return nil, err
	}
	if config.Auth.Password != "" && !v.IsSet("auth.enabled") {
		config.Auth.Enabled = true
	}
	if config.Telegram.Token != "" && config.Telegram.ChatID != 0 && !v.IsSet("telegram.enabled") {
		config.Telegram.Enabled = true
	}

	// Expand environment variables in paths
	config = expandPaths(config)

	// Validate config
	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func bindEnv(v *viper.Viper) error {
	for key, legacy := range configKeys {
		names := append([]string{"YUNA_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))}, legacy...)
		if err := v.BindEnv(append([]string{key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// applyUpdateTime honours UPDATE_TIME, the scan interval in minutes
func applyUpdateTime(config *domain.Config) error {
	raw := strings.TrimSpace(os.Getenv("UPDATE_TIME"))
	if raw == "" || os.Getenv("YUNA_SCANNER_INTERVAL") != "" {
		return nil
	}
	minutes, err := strconv.Atoi(raw)
	if err != nil || minutes < 1 {
		return fmt.Errorf("invalid UPDATE_TIME %q: expected minutes", raw)
	}
	config.Scanner.Interval = time.Duration(minutes) * time.Minute
	return nil
}

// applyTokenHours honours JWT_EXPIRE_HOURS, the token lifetime in hours
func applyTokenHours(config *domain.Config) error {
	raw := strings.TrimSpace(os.Getenv("JWT_EXPIRE_HOURS"))
	if raw == "" || os.Getenv("YUNA_AUTH_TOKEN_TTL") != "" {
		return nil
	}
	hours, err := strconv.Atoi(raw)
	if err != nil || hours < 1 {
		return fmt.Errorf("invalid JWT_EXPIRE_HOURS %q: expected hours", raw)
	}
	config.Auth.TokenTTL = time.Duration(hours) * time.Hour
	return nil
}

// expandPaths expands environment variables in path configurations
func expandPaths(config *domain.Config) *domain.Config {
	config.Library.AnimeDir = expandPath(config.Library.AnimeDir)
	config.Library.SeriesDir = expandPath(config.Library.SeriesDir)
	config.Library.MoviesDir = expandPath(config.Library.MoviesDir)
	config.Library.DatabasePath = expandPath(config.Library.DatabasePath)
	config.Library.LogsDir = expandPath(config.Library.LogsDir)
	config.Downloader.Nm3u8Binary = expandPath(config.Downloader.Nm3u8Binary)
	config.Downloader.FFmpegBinary = expandPath(config.Downloader.FFmpegBinary)
	config.Downloader.TempDir = expandPath(config.Downloader.TempDir)

	if config.Logging.OutputPath != "stdout" && config.Logging.OutputPath != "stderr" {
		config.Logging.OutputPath = expandPath(config.Logging.OutputPath)
	}

	return config
}

// expandPath expands environment variables and ~ in paths
func expandPath(path string) string {
	// Expand home directory
	if path == "~" || strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, strings.TrimPrefix(path, "~"))
		}
	}

	// $HOME first so it resolves even when HOME is unset in the environment
	if strings.Contains(path, "$HOME") {
		if home, err := os.UserHomeDir(); err == nil {
			path = strings.ReplaceAll(path, "$HOME", home)
		}
	}

	return os.ExpandEnv(path)
}

// validateConfig validates the configuration
func validateConfig(config *domain.Config) error {
	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	if config.Library.AnimeDir == "" || config.Library.SeriesDir == "" || config.Library.MoviesDir == "" {
		return fmt.Errorf("library directories not configured")
	}

	if config.Library.DatabasePath == "" {
		return fmt.Errorf("database path not configured")
	}

	if config.Library.LogsDir == "" {
		return fmt.Errorf("logs directory not configured")
	}

	if config.Downloader.ThreadCount < 1 {
		return fmt.Errorf("thread count must be at least 1")
	}

	if config.Downloader.RetryCount < 0 {
		return fmt.Errorf("retry count cannot be negative")
	}

	if config.Scanner.Enabled && config.Scanner.Interval < time.Minute {
		return fmt.Errorf("scan interval must be at least 1m, got %s", config.Scanner.Interval)
	}

	if config.Telegram.Enabled && (config.Telegram.Token == "" || config.Telegram.ChatID == 0) {
		return fmt.Errorf("telegram enabled but token or chat id missing")
	}

	if config.Auth.Enabled {
		if config.Auth.Username == "" || config.Auth.Password == "" {
			return fmt.Errorf("auth enabled but username or password missing")
		}
		if config.Auth.TokenTTL <= 0 {
			return fmt.Errorf("auth token_ttl must be positive")
		}
	}

	switch config.Status.Backend {
	case "memory", "":
	case "redis":
		if config.Status.RedisAddr == "" {
			return fmt.Errorf("redis status backend needs redis_addr")
		}
	default:
		return fmt.Errorf("unknown status backend %q", config.Status.Backend)
	}

	if config.Logging.Level == "" {
		config.Logging.Level = "info"
	}

	return nil
}

// SaveConfig saves configuration to file
func SaveConfig(config *domain.Config, path string) error {
	v := viper.New()
	v.SetConfigType("yaml")

	// Marshal config to viper, keyed by the mapstructure tags LoadConfig reads
	sections := map[string]interface{}{
		"server":       config.Server,
		"library":      config.Library,
		"downloader":   config.Downloader,
		"scanner":      config.Scanner,
		"providers":    config.Providers,
		"metadata":     config.Metadata,
		"telegram":     config.Telegram,
		"jellyfin":     config.Jellyfin,
		"notification": config.Notification,
		"status":       config.Status,
		"auth":         config.Auth,
		"logging":      config.Logging,
	}
	for name, section := range sections {
		values := map[string]interface{}{}
		if err := mapstructure.Decode(section, &values); err != nil {
			return fmt.Errorf("failed to encode %s config: %w", name, err)
		}
		v.Set(name, values)
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	// Write config file
	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
