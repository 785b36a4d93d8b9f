package tweak

import (
	"fmt"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"mirage-tweaks/pkg/process"
)

// Builder constructs one tweak against an attached target.
type Builder struct {
	Key   string
	Name  string
	Build func(t process.Target, store Store) (Tweak, error)
}

// Builders lists every known tweak.
func Builders() []Builder {
	return []Builder{
		{
			Key:  EjectHeight.Key,
			Name: EjectHeight.Name,
			Build: func(t process.Target, store Store) (Tweak, error) {
				tw, err := NewEjectHeight(t, store)
				if err != nil {
					return nil, err
				}
				return tw, nil
			},
		},
		{
			Key:  SprintSpeed.Key,
			Name: SprintSpeed.Name,
			Build: func(t process.Target, store Store) (Tweak, error) {
				tw, err := NewSprintSpeed(t, store)
				if err != nil {
					return nil, err
				}
				return tw, nil
			},
		},
	}
}

// Setup builds every tweak in its own goroutine and publishes each result as
// it completes. A failing builder only affects its own entry. The registry is
// marked ready once all builders have returned.
func Setup(t process.Target, store Store, reg *Registry, builders ...Builder) {
	var g errgroup.Group
	for _, b := range builders {
		g.Go(func() error {
			reg.Publish(build(b, t, store))
			return nil
		})
	}
	_ = g.Wait()
	reg.MarkReady()
	log.WithField("tweaks", len(builders)).Info("setup finished")
}

func build(b Builder, t process.Target, store Store) (e Entry) {
	e = Entry{Key: b.Key, Name: b.Name}
	entry := log.WithField("tweak", b.Key)

	defer func() {
		if r := recover(); r != nil {
			e.Tweak = nil
			e.Err = fmt.Errorf("%s: setup panicked: %v", b.Name, r)
			entry.Error(e.Err)
		}
	}()

	tw, err := b.Build(t, store)
	if err != nil {
		e.Err = err
		entry.Errorf("setup: %v", err)
		return e
	}
	e.Tweak = tw
	entry.Debug("ready")
	return e
}
