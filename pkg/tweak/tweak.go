// Package tweak turns reversible patches into user-facing features with a
// Disabled/Enabled lifecycle and persisted state.
package tweak

import (
	"fmt"
	"strconv"

	log "github.com/sirupsen/logrus"

	"mirage-tweaks/pkg/config"
)

// Intent is the direction in which a tweak changes the game's behaviour.
type Intent int

const (
	Increase Intent = iota
	Decrease
)

func (i Intent) String() string {
	switch i {
	case Increase:
		return "increase"
	case Decrease:
		return "decrease"
	default:
		return fmt.Sprintf("Intent(%d)", int(i))
	}
}

// Clamp limits how far a user edit may move from the default.
type Clamp int

const (
	ClampNone Clamp = iota
	// ClampLow raises values below the default to the default.
	ClampLow
	// ClampHigh lowers values above the default to the default.
	ClampHigh
)

func (c Clamp) Apply(v, def float64) float64 {
	switch {
	case c == ClampLow && v < def:
		return def
	case c == ClampHigh && v > def:
		return def
	default:
		return v
	}
}

type Bounds struct {
	Min     float64
	Max     float64
	Default float64
}

func (b Bounds) Contains(v float64) bool {
	return v >= b.Min && v <= b.Max
}

// Step is one percent of the range.
func (b Bounds) Step() float64 {
	return (b.Max - b.Min) / 100
}

// Tweak is the capability set every feature exposes to the control surface.
// Implementations are not safe for concurrent use.
type Tweak interface {
	Key() string
	Name() string
	Bounds() Bounds
	Intent() Intent
	Clamp() Clamp

	Enabled() bool
	Value() float64

	Enable() error
	Disable()
	SetValue(v float64) error
	ResetValue() error

	// Close releases live patches without touching the config.
	Close()
}

// Definition is the static metadata of a tweak.
type Definition struct {
	Key    string
	Name   string
	Bounds Bounds
	Intent Intent
	Clamp  Clamp
}

type Number interface {
	~float32 | ~float64 | ~int32 | ~uint32 | ~int64 | ~uint64
}

// Live is the patch state held while a tweak is enabled.
type Live[N Number] interface {
	Update(v N) error
	Release()
}

// Patcher builds the live patches for a value.
type Patcher[N Number] interface {
	Patch(v N) (Live[N], error)
}

type PatcherFunc[N Number] func(v N) (Live[N], error)

func (f PatcherFunc[N]) Patch(v N) (Live[N], error) {
	return f(v)
}

// Store is where tweak state is persisted.
type Store interface {
	Tweak(key string) (config.TweakConfig, bool)
	SetTweak(key string, tc config.TweakConfig) error
}

// Numeric is the generic state machine behind every tweak. A nil live
// means Disabled.
type Numeric[N Number] struct {
	def     Definition
	patcher Patcher[N]
	store   Store
	log     *log.Entry

	value N
	live  Live[N]
}

var _ Tweak = (*Numeric[float32])(nil)

// New restores the saved value (or the default) and enables the tweak if the
// config says so. An enable failure is logged and leaves it Disabled.
func New[N Number](def Definition, patcher Patcher[N], store Store) *Numeric[N] {
	t := &Numeric[N]{
		def:     def,
		patcher: patcher,
		store:   store,
		log:     log.WithField("tweak", def.Key),
		value:   N(def.Bounds.Default),
	}

	tc, ok := store.Tweak(def.Key)
	if !ok {
		return t
	}
	t.value = N(tc.Value)
	if tc.Enabled {
		_ = t.Enable()
	}
	return t
}

func (t *Numeric[N]) Key() string    { return t.def.Key }
func (t *Numeric[N]) Name() string   { return t.def.Name }
func (t *Numeric[N]) Bounds() Bounds { return t.def.Bounds }
func (t *Numeric[N]) Intent() Intent { return t.def.Intent }
func (t *Numeric[N]) Clamp() Clamp   { return t.def.Clamp }

func (t *Numeric[N]) Enabled() bool {
	return t.live != nil
}

func (t *Numeric[N]) Value() float64 {
	return widen(t.value)
}

func (t *Numeric[N]) Enable() error {
	if t.live != nil {
		return nil
	}
	live, err := t.patcher.Patch(t.value)
	if err != nil {
		t.log.Errorf("enable: %v", err)
		return fmt.Errorf("enable %s: %w", t.def.Name, err)
	}
	t.live = live
	t.log.WithField("value", t.Value()).Info("enabled")
	t.persist()
	return nil
}

func (t *Numeric[N]) Disable() {
	if t.live == nil {
		return
	}
	t.live.Release()
	t.live = nil
	t.log.Info("disabled")
	t.persist()
}

// SetValue records v even when the live write fails, so the control surface
// keeps showing what the user asked for.
func (t *Numeric[N]) SetValue(v float64) error {
	t.value = N(v)

	var err error
	if t.live != nil {
		if werr := t.live.Update(t.value); werr != nil {
			t.log.Errorf("set value %v: %v", v, werr)
			err = fmt.Errorf("set %s: %w", t.def.Name, werr)
		}
	}
	t.persist()
	return err
}

func (t *Numeric[N]) ResetValue() error {
	return t.SetValue(t.def.Bounds.Default)
}

func (t *Numeric[N]) Close() {
	if t.live == nil {
		return
	}
	t.live.Release()
	t.live = nil
}

func (t *Numeric[N]) persist() {
	tc := config.TweakConfig{Enabled: t.live != nil, Value: t.Value()}
	if err := t.store.SetTweak(t.def.Key, tc); err != nil {
		t.log.Warnf("save config: %v", err)
	}
}

// widen converts to float64 by shortest decimal, so a float32 1.3 stays 1.3
// in the config instead of 1.2999999523.
func widen[N Number](v N) float64 {
	if f, ok := any(v).(float32); ok {
		w, err := strconv.ParseFloat(strconv.FormatFloat(float64(f), 'g', -1, 32), 64)
		if err == nil {
			return w
		}
	}
	return float64(v)
}
