package tweak

import (
	"errors"
	"path/filepath"
	"testing"

	"mirage-tweaks/pkg/config"
)

func TestNewStartsDisabledAtDefault(t *testing.T) {
	store := newMemStore()
	tw := New[float32](testDefinition, &fakePatcher{}, store)

	if tw.Enabled() {
		t.Fatalf("expected Disabled")
	}
	if tw.Value() != 2 {
		t.Fatalf("Value = %v want default 2", tw.Value())
	}
	if store.saves != 0 {
		t.Fatalf("construction without config should not save")
	}
}

func TestNewRestoresConfig(t *testing.T) {
	store := newMemStore()
	store.tweaks["test-tweak"] = config.TweakConfig{Enabled: true, Value: 7.5}
	patcher := &fakePatcher{}

	tw := New[float32](testDefinition, patcher, store)
	if !tw.Enabled() || tw.Value() != 7.5 {
		t.Fatalf("Enabled=%v Value=%v want enabled at 7.5", tw.Enabled(), tw.Value())
	}
	if patcher.last.value != 7.5 {
		t.Fatalf("patched with %v want 7.5", patcher.last.value)
	}
}

func TestNewEnableFailureIsLogged(t *testing.T) {
	store := newMemStore()
	store.tweaks["test-tweak"] = config.TweakConfig{Enabled: true, Value: 3}

	tw := New[float32](testDefinition, &fakePatcher{err: errWrite}, store)
	if tw.Enabled() {
		t.Fatalf("expected Disabled after failed enable")
	}
	if tw.Value() != 3 {
		t.Fatalf("Value = %v want saved 3", tw.Value())
	}
}

func TestEnableDisableIdempotent(t *testing.T) {
	store := newMemStore()
	patcher := &fakePatcher{}
	tw := New[float32](testDefinition, patcher, store)

	for i := 0; i < 2; i++ {
		if err := tw.Enable(); err != nil {
			t.Fatalf("Enable #%d: %v", i, err)
		}
	}
	if patcher.patches != 1 || store.saves != 1 {
		t.Fatalf("patches=%d saves=%d after double enable, want 1 and 1", patcher.patches, store.saves)
	}
	if tc := store.mustGet(t, "test-tweak"); !tc.Enabled || tc.Value != 2 {
		t.Fatalf("config = %+v", tc)
	}

	tw.Disable()
	tw.Disable()
	if patcher.releases != 1 || store.saves != 2 {
		t.Fatalf("releases=%d saves=%d after double disable, want 1 and 2", patcher.releases, store.saves)
	}
	if tc := store.mustGet(t, "test-tweak"); tc.Enabled {
		t.Fatalf("config still enabled: %+v", tc)
	}
}

func TestEnableFailureStaysDisabled(t *testing.T) {
	store := newMemStore()
	patcher := &fakePatcher{err: errWrite}
	tw := New[float32](testDefinition, patcher, store)

	err := tw.Enable()
	if !errors.Is(err, errWrite) {
		t.Fatalf("Enable err = %v want wrapped errWrite", err)
	}
	if tw.Enabled() {
		t.Fatalf("expected Disabled")
	}
	if store.saves != 0 {
		t.Fatalf("failed enable should not persist")
	}

	patcher.err = nil
	if err := tw.Enable(); err != nil {
		t.Fatalf("retry Enable: %v", err)
	}
	if !tw.Enabled() {
		t.Fatalf("expected Enabled after retry")
	}
}

func TestSetValueWhileDisabled(t *testing.T) {
	store := newMemStore()
	patcher := &fakePatcher{}
	tw := New[float32](testDefinition, patcher, store)

	if err := tw.SetValue(4); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	if patcher.patches != 0 {
		t.Fatalf("SetValue while disabled must not patch")
	}
	if tc := store.mustGet(t, "test-tweak"); tc.Enabled || tc.Value != 4 {
		t.Fatalf("config = %+v", tc)
	}

	if err := tw.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	if patcher.last.value != 4 {
		t.Fatalf("enabled with %v want 4", patcher.last.value)
	}
}

func TestSetValueWriteFailureStillRecords(t *testing.T) {
	store := newMemStore()
	patcher := &fakePatcher{}
	tw := New[float32](testDefinition, patcher, store)
	if err := tw.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}
	patcher.last.updateErr = errWrite

	err := tw.SetValue(5.0)
	if !errors.Is(err, errWrite) {
		t.Fatalf("SetValue err = %v want wrapped errWrite", err)
	}
	if tw.Value() != 5.0 {
		t.Fatalf("Value = %v want 5", tw.Value())
	}
	if !tw.Enabled() {
		t.Fatalf("failed update should not disable")
	}
	if tc := store.mustGet(t, "test-tweak"); !tc.Enabled || tc.Value != 5.0 {
		t.Fatalf("config = %+v want enabled 5", tc)
	}
}

func TestResetValue(t *testing.T) {
	store := newMemStore()
	patcher := &fakePatcher{}
	tw := New[float32](testDefinition, patcher, store)
	_ = tw.Enable()
	_ = tw.SetValue(9)

	if err := tw.ResetValue(); err != nil {
		t.Fatalf("ResetValue: %v", err)
	}
	if tw.Value() != 2 || patcher.last.value != 2 {
		t.Fatalf("Value=%v live=%v want 2", tw.Value(), patcher.last.value)
	}
}

func TestCloseKeepsConfig(t *testing.T) {
	store := newMemStore()
	patcher := &fakePatcher{}
	tw := New[float32](testDefinition, patcher, store)
	_ = tw.Enable()
	saves := store.saves

	tw.Close()
	tw.Close()
	if patcher.releases != 1 {
		t.Fatalf("releases = %d want 1", patcher.releases)
	}
	if store.saves != saves {
		t.Fatalf("Close persisted state")
	}
	if tc := store.mustGet(t, "test-tweak"); !tc.Enabled {
		t.Fatalf("config should still say enabled for next start")
	}
}

func TestFloat32ValuePersistsShortestDecimal(t *testing.T) {
	path := filepath.Join(t.TempDir(), config.DefaultPath)
	tw := New[float32](EjectHeight, &fakePatcher{}, config.Load(path))
	if err := tw.Enable(); err != nil {
		t.Fatalf("Enable: %v", err)
	}

	tc, ok := config.Load(path).Tweak(EjectHeight.Key)
	if !ok || !tc.Enabled || tc.Value != 1.3 {
		t.Fatalf("reloaded = %+v %v want enabled 1.3", tc, ok)
	}
	if tw.Value() != 1.3 {
		t.Fatalf("Value = %v want 1.3", tw.Value())
	}
}

func TestClampApply(t *testing.T) {
	cases := []struct {
		name  string
		clamp Clamp
		in    float64
		want  float64
	}{
		{"none_below", ClampNone, 0.5, 0.5},
		{"low_below", ClampLow, 0.5, 1.3},
		{"low_above", ClampLow, 4, 4},
		{"high_above", ClampHigh, 4, 1.3},
		{"high_below", ClampHigh, 0.5, 0.5},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.clamp.Apply(tc.in, 1.3); got != tc.want {
				t.Fatalf("Apply(%v) = %v want %v", tc.in, got, tc.want)
			}
		})
	}
}

func TestBounds(t *testing.T) {
	b := SprintSpeed.Bounds
	if b.Step() != 0.12 {
		t.Fatalf("Step = %v want 0.12", b.Step())
	}
	if !b.Contains(0) || !b.Contains(12) || b.Contains(12.5) || b.Contains(-1) {
		t.Fatalf("Contains wrong for %+v", b)
	}
}

func TestIntent(t *testing.T) {
	cases := []struct {
		intent Intent
		want   string
	}{
		{Increase, "increase"},
		{Decrease, "decrease"},
		{Intent(7), "Intent(7)"},
	}
	for _, tc := range cases {
		if got := tc.intent.String(); got != tc.want {
			t.Fatalf("String() = %q want %q", got, tc.want)
		}
	}
	tw := New[float32](EjectHeight, &fakePatcher{}, newMemStore())
	if tw.Intent() != Increase {
		t.Fatalf("eject height intent = %v", tw.Intent())
	}
}
