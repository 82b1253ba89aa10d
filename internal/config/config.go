package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Search   SearchConfig   `mapstructure:"search"`
	Browse   BrowseConfig   `mapstructure:"browse"`
	Cache    CacheConfig    `mapstructure:"cache"`
	Favicon  FaviconConfig  `mapstructure:"favicon"`
	Export   ExportConfig   `mapstructure:"export"`
	Media    MediaConfig    `mapstructure:"media"`
	Keys     KeyConfig      `mapstructure:"keys"`
	Log      LogConfig      `mapstructure:"log"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
	ImagesDir   string        `mapstructure:"images_dir"`
}

type SearchConfig struct {
	// Engine is "substring" or "bleve".
	Engine   string        `mapstructure:"engine"`
	Debounce time.Duration `mapstructure:"debounce"`
}

type BrowseConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type CacheConfig struct {
	ImageCapacity int `mapstructure:"image_capacity"`
	IconCapacity  int `mapstructure:"icon_capacity"`
}

type FaviconConfig struct {
	HTTPTimeout time.Duration `mapstructure:"http_timeout"`
	UserAgent   string        `mapstructure:"user_agent"`
	// Sources overrides the built-in icon provider templates when non-empty.
	// "{domain}" is replaced with the domain.
	Sources []string `mapstructure:"sources"`
}

type ExportConfig struct {
	Product   string `mapstructure:"product"`
	Directory string `mapstructure:"directory"`
}

type MediaConfig struct {
	Image         []string `mapstructure:"image"`
	DefaultOpener string   `mapstructure:"default_opener"`
}

type KeyConfig struct {
	// Modifier prefixes action keys in the TUI, e.g. "ctrl" or "alt".
	Modifier string `mapstructure:"modifier"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	File  string `mapstructure:"file"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".cutboard")

	return &Config{
		Database: DatabaseConfig{
			Path:        filepath.Join(dataDir, "cutboard.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(dataDir, "index.bleve"),
			ImagesDir:   filepath.Join(dataDir, "images"),
		},
		Search: SearchConfig{
			Engine:   "substring",
			Debounce: 300 * time.Millisecond,
		},
		Browse: BrowseConfig{
			PageSize: 20,
		},
		Cache: CacheConfig{
			ImageCapacity: 100,
			IconCapacity:  200,
		},
		Favicon: FaviconConfig{
			HTTPTimeout: 5 * time.Second,
			UserAgent:   "cutboard/1.0 (https://github.com/pders01/cutboard)",
		},
		Export: ExportConfig{
			Product:   "cutboard",
			Directory: filepath.Join(homeDir, "Downloads"),
		},
		Media: MediaConfig{
			Image:         defaultImageViewers(),
			DefaultOpener: getDefaultOpener(),
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
		},
		Log: LogConfig{
			Level: "off",
		},
	}
}

func defaultImageViewers() []string {
	switch runtime.GOOS {
	case "darwin":
		return []string{"open"}
	case "windows":
		return []string{"explorer"}
	default:
		return []string{"sxiv", "feh", "eog", "xdg-open"}
	}
}

func getDefaultOpener() string {
	switch runtime.GOOS {
	case "darwin":
		return "open"
	case "linux":
		return "xdg-open"
	case "windows":
		return "explorer"
	default:
		return "open"
	}
}

// DefaultPath is ~/.config/cutboard/config.toml.
func DefaultPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".config", "cutboard", "config.toml")
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("database", cfg.Database)
	v.SetDefault("search", cfg.Search)
	v.SetDefault("browse", cfg.Browse)
	v.SetDefault("cache", cfg.Cache)
	v.SetDefault("favicon", cfg.Favicon)
	v.SetDefault("export", cfg.Export)
	v.SetDefault("media", cfg.Media)
	v.SetDefault("keys", cfg.Keys)
	v.SetDefault("log", cfg.Log)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(filepath.Dir(DefaultPath()))
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CUTBOARD")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	expandPaths(&config)
	applyFloors(&config)

	return &config, nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Database.ImagesDir = expandPath(cfg.Database.ImagesDir)
	cfg.Export.Directory = expandPath(cfg.Export.Directory)
	cfg.Log.File = expandPath(cfg.Log.File)
}

// applyFloors replaces nonsensical numeric settings with defaults.
func applyFloors(cfg *Config) {
	def := defaultConfig()
	if cfg.Browse.PageSize < 1 {
		cfg.Browse.PageSize = def.Browse.PageSize
	}
	if cfg.Cache.ImageCapacity < 1 {
		cfg.Cache.ImageCapacity = def.Cache.ImageCapacity
	}
	if cfg.Cache.IconCapacity < 1 {
		cfg.Cache.IconCapacity = def.Cache.IconCapacity
	}
	if cfg.Keys.Modifier == "" {
		cfg.Keys.Modifier = def.Keys.Modifier
	}
	if cfg.Search.Debounce <= 0 {
		cfg.Search.Debounce = def.Search.Debounce
	}
}

func Save(config *Config, path string) error {
	v := viper.New()

	// durations as strings for TOML readability
	v.Set("database", map[string]interface{}{
		"path":         config.Database.Path,
		"timeout":      config.Database.Timeout.String(),
		"search_index": config.Database.SearchIndex,
		"images_dir":   config.Database.ImagesDir,
	})
	v.Set("search", map[string]interface{}{
		"engine":   config.Search.Engine,
		"debounce": config.Search.Debounce.String(),
	})
	v.Set("browse", map[string]interface{}{
		"page_size": config.Browse.PageSize,
	})
	v.Set("cache", map[string]interface{}{
		"image_capacity": config.Cache.ImageCapacity,
		"icon_capacity":  config.Cache.IconCapacity,
	})
	v.Set("favicon", map[string]interface{}{
		"http_timeout": config.Favicon.HTTPTimeout.String(),
		"user_agent":   config.Favicon.UserAgent,
		"sources":      config.Favicon.Sources,
	})
	v.Set("export", map[string]interface{}{
		"product":   config.Export.Product,
		"directory": config.Export.Directory,
	})
	v.Set("media", map[string]interface{}{
		"image":          config.Media.Image,
		"default_opener": config.Media.DefaultOpener,
	})
	v.Set("keys", map[string]interface{}{
		"modifier": config.Keys.Modifier,
	})
	v.Set("log", map[string]interface{}{
		"level": config.Log.Level,
		"file":  config.Log.File,
	})

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
