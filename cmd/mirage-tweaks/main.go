//go:build windows

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rivo/tview"
	log "github.com/sirupsen/logrus"

	"mirage-tweaks/pkg/config"
	"mirage-tweaks/pkg/process"
	"mirage-tweaks/pkg/tweak"
)

const defaultLogPath = "mirage-tweaks.log"

// setupGrace bounds how long shutdown waits for scans still in flight.
const setupGrace = 5 * time.Second

type nameList []string

func (n *nameList) String() string {
	return strings.Join(*n, ",")
}

func (n *nameList) Set(v string) error {
	*n = append(*n, v)
	return nil
}

func main() {
	os.Exit(run())
}

func run() int {
	var names nameList
	configPath := flag.String("config", config.DefaultPath, "YAML file holding tweak state")
	logPath := flag.String("log", defaultLogPath, "log file")
	debug := flag.Bool("debug", false, "log at debug level")
	flag.Var(&names, "process", "target image name; repeat to try several (overrides module-names in the config)")
	flag.Parse()

	logFile, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open log: %v\n", err)
		return 1
	}
	defer logFile.Close()

	pane := &paneWriter{}
	log.SetOutput(io.MultiWriter(logFile, pane))
	log.SetFormatter(&log.TextFormatter{DisableColors: true, FullTimestamp: true})
	if *debug {
		log.SetLevel(log.DebugLevel)
	}

	config.SharedPath = *configPath
	store := config.Shared()
	log.WithField("config", store.Path()).Info("starting")
	if len(names) == 0 {
		names = store.ModuleNames(process.DefaultNames)
	}

	app := tview.NewApplication()

	proc, err := process.Attach(names)
	if err != nil {
		log.Errorf("attach: %v", err)
		showError(app, attachMessage(err, names))
		return 1
	}
	defer proc.Close()

	reg := tweak.NewRegistry()
	setupDone := make(chan struct{})
	go func() {
		defer close(setupDone)
		tweak.Setup(proc, store, reg, tweak.Builders()...)
	}()
	defer func() {
		select {
		case <-setupDone:
		case <-time.After(setupGrace):
			log.Warn("tweak setup still running at exit")
		}
		reg.Close()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		app.Stop()
	}()

	label := fmt.Sprintf("%s (PID %d)", proc.Name, proc.PID)
	done := make(chan struct{})
	u := newUI(app, reg, proc, label, pane, done)
	err = app.SetRoot(u.layout(), true).EnableMouse(true).Run()
	close(done)
	if err != nil {
		log.Errorf("ui: %v", err)
		return 1
	}
	return 0
}

func attachMessage(err error, names []string) string {
	switch {
	case errors.Is(err, process.ErrNotFound):
		return fmt.Sprintf("None of %s is running.\n\nStart the game first.", strings.Join(names, ", "))
	case errors.Is(err, process.ErrAccessDenied):
		return fmt.Sprintf("Could not open the game process:\n%v\n\nTry running as administrator.", err)
	default:
		return fmt.Sprintf("Could not attach to the game:\n%v", err)
	}
}

// showError blocks on a single dialog until the user dismisses it.
func showError(app *tview.Application, msg string) {
	modal := tview.NewModal().
		SetText(msg).
		AddButtons([]string{"Quit"}).
		SetDoneFunc(func(int, string) {
			app.Stop()
		})
	applyModalTheme(modal)

	if err := app.SetRoot(modal, false).Run(); err != nil {
		fmt.Fprintln(os.Stderr, msg)
	}
}
