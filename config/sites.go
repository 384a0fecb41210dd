package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"

	"github.com/layer-3/verigate/core"
)

const reloadDebounce = 500 * time.Millisecond

// siteFile is the layout of the sites YAML file
type siteFile struct {
	Sites []core.SiteConfig `yaml:"sites"`
}

// Registry serves site configuration: per-site overrides from an optional YAML file on top of the defaults.
// It is read-only at runtime apart from file reloads.
type Registry struct {
	path     string
	debounce time.Duration

	mu    sync.RWMutex
	sites map[string]core.SiteConfig
}

// NewRegistry returns a registry that serves the defaults for every site
func NewRegistry() *Registry {
	return &Registry{
		debounce: reloadDebounce,
		sites:    make(map[string]core.SiteConfig),
	}
}

// LoadRegistry reads site overrides from path
func LoadRegistry(path string) (*Registry, error) {
	r := NewRegistry()
	r.path = path
	if err := r.Reload(); err != nil {
		return nil, err
	}
	return r, nil
}

// Lookup returns the configuration of siteKey, falling back to the defaults
func (r *Registry) Lookup(siteKey string) core.SiteConfig {
	r.mu.RLock()
	cfg, ok := r.sites[siteKey]
	r.mu.RUnlock()
	if !ok {
		return core.DefaultSiteConfig(siteKey)
	}

	cfg.Challenges = append([]core.ChallengeKind(nil), cfg.Challenges...)
	cfg.AllowedDomains = append([]string(nil), cfg.AllowedDomains...)
	return cfg
}

// Len returns the number of sites with overrides
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sites)
}

// Reload re-reads the sites file. On error the previous configuration stays in place.
func (r *Registry) Reload() error {
	if r.path == "" {
		return nil
	}

	data, err := os.ReadFile(r.path)
	if err != nil {
		return fmt.Errorf("failed to read sites file: %w", err)
	}
	sites, err := parseSites(data)
	if err != nil {
		return fmt.Errorf("failed to parse sites file %s: %w", r.path, err)
	}

	r.mu.Lock()
	r.sites = sites
	r.mu.Unlock()
	return nil
}

// Watch reloads the registry whenever the sites file changes, until ctx is done.
// Bursts of file events are collapsed into one reload.
func (r *Registry) Watch(ctx context.Context) error {
	if r.path == "" {
		return nil
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	// editors replace files on save, so watch the directory
	if err := watcher.Add(filepath.Dir(r.path)); err != nil {
		watcher.Close()
		return fmt.Errorf("failed to watch %s: %w", r.path, err)
	}

	reload := make(chan struct{}, 1)
	go r.scheduleReload(ctx, reload)
	go r.handleWatcher(ctx, watcher, reload)
	return nil
}

func (r *Registry) handleWatcher(ctx context.Context, watcher *fsnotify.Watcher, reload chan<- struct{}) {
	defer watcher.Close()
	name := filepath.Clean(r.path)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write | fsnotify.Create | fsnotify.Rename) {
				select {
				case reload <- struct{}{}:
				default:
				}
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("sites watcher error", "error", err)
		}
	}
}

func (r *Registry) scheduleReload(ctx context.Context, reload <-chan struct{}) {
	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return
		case <-reload:
			if timer != nil {
				timer.Reset(r.debounce)
			} else {
				timer = time.NewTimer(r.debounce)
				fire = timer.C
			}
		case <-fire:
			timer, fire = nil, nil
			if err := r.Reload(); err != nil {
				slog.Error("failed to reload sites", "path", r.path, "error", err)
				continue
			}
			slog.Info("sites reloaded", "path", r.path, "sites", r.Len())
		}
	}
}

// parseSites decodes the sites file and fills every unset field from the defaults
func parseSites(data []byte) (map[string]core.SiteConfig, error) {
	var file siteFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}

	sites := make(map[string]core.SiteConfig, len(file.Sites))
	for i, entry := range file.Sites {
		if entry.SiteKey == "" {
			return nil, fmt.Errorf("site %d: siteKey is required", i)
		}
		if _, dup := sites[entry.SiteKey]; dup {
			return nil, fmt.Errorf("site %q: defined twice", entry.SiteKey)
		}
		cfg, err := withDefaults(entry)
		if err != nil {
			return nil, fmt.Errorf("site %q: %w", entry.SiteKey, err)
		}
		sites[cfg.SiteKey] = cfg
	}
	return sites, nil
}

func withDefaults(entry core.SiteConfig) (core.SiteConfig, error) {
	cfg := core.DefaultSiteConfig(entry.SiteKey)

	switch entry.Theme {
	case "":
	case core.ThemeLight, core.ThemeDark:
		cfg.Theme = entry.Theme
	default:
		return cfg, fmt.Errorf("unknown theme %q", entry.Theme)
	}

	switch entry.Size {
	case "":
	case core.SizeNormal, core.SizeCompact:
		cfg.Size = entry.Size
	default:
		return cfg, fmt.Errorf("unknown size %q", entry.Size)
	}

	if len(entry.Challenges) > 0 {
		for _, k := range entry.Challenges {
			if !k.Valid() {
				return cfg, fmt.Errorf("unknown challenge %q", k)
			}
		}
		cfg.Challenges = entry.Challenges
	}

	if entry.Difficulty != "" {
		cfg.Difficulty = entry.Difficulty
	}
	if entry.Timeout < 0 {
		return cfg, errors.New("timeout must not be negative")
	}
	if entry.Timeout > 0 {
		cfg.Timeout = entry.Timeout
	}
	if len(entry.AllowedDomains) > 0 {
		cfg.AllowedDomains = entry.AllowedDomains
	}
	if entry.RateLimit.Requests > 0 {
		cfg.RateLimit.Requests = entry.RateLimit.Requests
	}
	if entry.RateLimit.Window > 0 {
		cfg.RateLimit.Window = entry.RateLimit.Window
	}
	return cfg, nil
}
