package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pders01/cutboard/internal/config"
	"github.com/pders01/cutboard/internal/debuglog"
	"github.com/pders01/cutboard/internal/favicon"
	"github.com/pders01/cutboard/internal/library"
	"github.com/pders01/cutboard/internal/search"
	"github.com/pders01/cutboard/internal/storage"
	"github.com/pders01/cutboard/internal/validation"
)

// env is the opened local library shared by every command.
type env struct {
	cfg      *config.Config
	store    *storage.Store
	searcher search.Searcher
	lib      *library.Library
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if dbPath != "" {
		path, err := validation.ExpandPath(dbPath)
		if err != nil {
			return nil, fmt.Errorf("database path: %w", err)
		}
		cfg.Database.Path = path
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	return cfg, nil
}

func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := debuglog.Setup(debuglog.ParseLogLevel(cfg.Log.Level), cfg.Log.File); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Database.ImagesDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating images directory: %w", err)
	}

	store, err := storage.NewStore(cfg.Database.Path, cfg.Database.Timeout)
	if err != nil {
		return nil, err
	}

	searcher, err := newSearcher(cfg, store)
	if err != nil {
		store.Close()
		return nil, err
	}

	lib := library.New(store, searcher, library.Options{
		ImagesDir:      cfg.Database.ImagesDir,
		Product:        cfg.Export.Product,
		ImageCacheSize: cfg.Cache.ImageCapacity,
	})
	debuglog.Infof("opened %s (search: %s)", cfg.Database.Path, cfg.Search.Engine)

	return &env{cfg: cfg, store: store, searcher: searcher, lib: lib}, nil
}

func newSearcher(cfg *config.Config, store *storage.Store) (search.Searcher, error) {
	switch strings.ToLower(cfg.Search.Engine) {
	case "", "substring":
		return search.NewEngine(), nil
	case "bleve":
		s, err := search.NewBleveEngine(store, cfg.Database.SearchIndex)
		if err != nil {
			return nil, fmt.Errorf("opening search index: %w", err)
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown search engine %q", cfg.Search.Engine)
	}
}

func (e *env) favicons() (*favicon.Service, error) {
	providers, err := favicon.LoadProviders(e.cfg.Favicon.Sources)
	if err != nil {
		return nil, err
	}
	fc := e.cfg.Favicon
	return favicon.NewService(
		favicon.NewTiers(e.store, e.cfg.Cache.IconCapacity),
		providers,
		favicon.NewHTTPResolver(fc.HTTPTimeout, fc.UserAgent),
		favicon.NewHTTPProber(fc.HTTPTimeout, fc.UserAgent),
	), nil
}

// bucket finds a bucket by id or case-insensitive name.
func (e *env) bucket(ref string) (*storage.Bucket, error) {
	if id, err := strconv.ParseInt(ref, 10, 64); err == nil {
		return e.store.GetBucket(id)
	}
	buckets, err := e.store.GetBuckets()
	if err != nil {
		return nil, err
	}
	for _, b := range buckets {
		if strings.EqualFold(b.Name, ref) {
			return b, nil
		}
	}
	return nil, fmt.Errorf("no bucket named %q", ref)
}

func (e *env) Close() {
	if c, ok := e.searcher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			debuglog.Warnf("closing search index: %v", err)
		}
	}
	if err := e.store.Close(); err != nil {
		debuglog.Warnf("closing store: %v", err)
	}
	_ = debuglog.Close()
}
