package config

import (
	"path/filepath"
	"time"
)

// TestConfig returns a config rooted in dir, suitable for testing.
func TestConfig(dir string) *Config {
	def := defaultConfig()
	return &Config{
		Database: DatabaseConfig{
			Path:        filepath.Join(dir, "test.db"),
			Timeout:     1 * time.Second,
			SearchIndex: filepath.Join(dir, "index.bleve"),
			ImagesDir:   filepath.Join(dir, "images"),
		},
		Search: SearchConfig{
			Engine:   "substring",
			Debounce: 10 * time.Millisecond,
		},
		Browse: def.Browse,
		Cache:  def.Cache,
		Favicon: FaviconConfig{
			HTTPTimeout: 2 * time.Second,
			UserAgent:   "cutboard-test/1.0",
		},
		Export: ExportConfig{
			Product:   "cutboard",
			Directory: dir,
		},
		Media: def.Media,
		Keys:  def.Keys,
		Log:   LogConfig{Level: "off"},
	}
}
