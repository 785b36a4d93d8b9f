// Package config persists per-tweak state in a YAML document.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"sync"

	"github.com/natefinch/atomic"
	log "github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const DefaultPath = "mirage-tweaks.yaml"

type TweakConfig struct {
	Enabled bool    `yaml:"enabled"`
	Value   float64 `yaml:"value"`
}

type Config struct {
	ModuleNames []string               `yaml:"module-names,omitempty"`
	Tweaks      map[string]TweakConfig `yaml:"tweaks,omitempty"`
}

// Store is the loaded document. Every mutation is written back immediately.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

// SharedPath is the document Shared loads. Set it before the first call.
var SharedPath = DefaultPath

// Shared returns the process-wide store, loading it on first use.
var Shared = sync.OnceValue(func() *Store {
	return Load(SharedPath)
})

// Load reads path. A missing or malformed document yields an empty config;
// the problem is logged and the next save overwrites the file.
func Load(path string) *Store {
	s := &Store{path: path}

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		log.WithField("path", path).Info("no config file, using defaults")
		return s
	case err != nil:
		log.WithField("path", path).Warnf("read config: %v", err)
		return s
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		log.WithField("path", path).Warnf("malformed config, using defaults: %v", err)
		return s
	}
	s.cfg = cfg
	log.WithFields(log.Fields{"path": path, "tweaks": len(cfg.Tweaks)}).Debug("config loaded")
	return s
}

func (s *Store) Path() string {
	return s.path
}

// ModuleNames returns the configured target image names, or defaults when none are set.
func (s *Store) ModuleNames(defaults []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.cfg.ModuleNames) == 0 {
		return slices.Clone(defaults)
	}
	return slices.Clone(s.cfg.ModuleNames)
}

// Tweak returns the saved entry for key and whether one exists.
func (s *Store) Tweak(key string) (TweakConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.cfg.Tweaks[key]
	return tc, ok
}

// SetTweak replaces the entry for key and saves the document.
func (s *Store) SetTweak(key string, tc TweakConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cfg.Tweaks == nil {
		s.cfg.Tweaks = make(map[string]TweakConfig)
	}
	s.cfg.Tweaks[key] = tc
	return s.save()
}

func (s *Store) save() error {
	data, err := yaml.Marshal(&s.cfg)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := atomic.WriteFile(s.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("save config: %w", err)
	}
	return nil
}
