package tweak

import (
	"errors"
	"sync"
	"testing"

	"mirage-tweaks/pkg/config"
)

type memStore struct {
	mu     sync.Mutex
	tweaks map[string]config.TweakConfig
	saves  int
}

func newMemStore() *memStore {
	return &memStore{tweaks: make(map[string]config.TweakConfig)}
}

func (s *memStore) Tweak(key string) (config.TweakConfig, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tc, ok := s.tweaks[key]
	return tc, ok
}

func (s *memStore) SetTweak(key string, tc config.TweakConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tweaks[key] = tc
	s.saves++
	return nil
}

func (s *memStore) mustGet(t *testing.T, key string) config.TweakConfig {
	t.Helper()
	tc, ok := s.Tweak(key)
	if !ok {
		t.Fatalf("no config entry for %q", key)
	}
	return tc
}

// fakeLive records calls made by the state machine.
type fakeLive struct {
	owner     *fakePatcher
	value     float32
	updateErr error
}

func (l *fakeLive) Update(v float32) error {
	if l.updateErr != nil {
		return l.updateErr
	}
	l.value = v
	return nil
}

func (l *fakeLive) Release() {
	l.owner.releases++
}

type fakePatcher struct {
	patches  int
	releases int
	err      error
	last     *fakeLive
}

func (p *fakePatcher) Patch(v float32) (Live[float32], error) {
	if p.err != nil {
		return nil, p.err
	}
	p.patches++
	p.last = &fakeLive{owner: p, value: v}
	return p.last, nil
}

var errWrite = errors.New("invalid handle")

var testDefinition = Definition{
	Key:    "test-tweak",
	Name:   "test tweak",
	Bounds: Bounds{Min: 0, Max: 10, Default: 2},
	Intent: Increase,
	Clamp:  ClampLow,
}
