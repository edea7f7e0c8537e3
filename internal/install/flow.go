package install

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/Faizanmal/Mult-Agent-sub002/internal/infrastructure/monitoring"
)

// ErrNoPrompt reports that no install prompt is armed. Callers treat it
// as "nothing to do", not a failure.
var ErrNoPrompt = errors.New("install: no prompt available")

// Outcome is the result of consuming the install prompt.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDismissed Outcome = "dismissed"
)

type phase int

const (
	phaseNoPrompt phase = iota
	phasePromptReady
	phaseRetired
)

// EventKind discriminates flow events.
type EventKind int

const (
	// EventInstallable reports a change in prompt availability.
	EventInstallable EventKind = iota

	// EventInstalled reports a change in installed state.
	EventInstalled
)

// Event is a flow notification delivered on the Events channel.
type Event struct {
	Kind    EventKind
	Enabled bool
}

// Platform is the desktop integration surface the flow drives. A nil
// platform means the host has no integration; everything degrades to
// "unavailable" without errors.
type Platform interface {
	Available() bool
	Installed() (bool, error)
	Install() error
	Standalone() bool
	Watch(ctx context.Context) (<-chan bool, error)
}

const flowEventBuffer = 8

// Flow owns the one-shot install prompt lifecycle.
type Flow struct {
	platform Platform
	logger   *zap.Logger
	metrics  *monitoring.Metrics

	events chan Event

	mu         sync.RWMutex
	phase      phase
	installed  bool
	standalone bool
}

// NewFlow creates the flow. Platform and metrics may be nil.
func NewFlow(platform Platform, logger *zap.Logger, metrics *monitoring.Metrics) *Flow {
	return &Flow{
		platform: platform,
		logger:   logger,
		metrics:  metrics,
		events:   make(chan Event, flowEventBuffer),
	}
}

// Events delivers flow notifications. Slow consumers lose events rather
// than blocking the flow.
func (f *Flow) Events() <-chan Event {
	return f.events
}

// Installable reports whether an install prompt is armed.
func (f *Flow) Installable() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.phase == phasePromptReady
}

// Installed reports whether the workspace is installed.
func (f *Flow) Installed() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.installed
}

// Standalone reports whether this process was launched through the
// installed integration.
func (f *Flow) Standalone() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.standalone
}

// Start probes the platform, arms the prompt when integration is
// available and nothing is installed, and begins watching for external
// install changes. A host without integration logs once and degrades.
func (f *Flow) Start(ctx context.Context) {
	if f.platform == nil || !f.platform.Available() {
		f.logger.Info("install integration unavailable on this host")
		return
	}

	installed, err := f.platform.Installed()
	if err != nil {
		f.logger.Warn("install probe failed", zap.Error(err))
	}
	standalone := f.platform.Standalone()

	f.mu.Lock()
	f.installed = installed
	f.standalone = standalone
	// Restarts re-arm an unaccepted prompt; acceptance stays retired.
	if !installed && f.phase != phaseRetired {
		f.phase = phasePromptReady
	}
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.SetInstalled(installed)
	}
	if !installed {
		f.logger.Info("install prompt armed")
	}

	updates, err := f.platform.Watch(ctx)
	if err != nil {
		f.logger.Warn("install watch unavailable", zap.Error(err))
		return
	}
	go f.watchLoop(ctx, updates)
}

// Prompt consumes the armed prompt. Outside promptReady it reports
// ErrNoPrompt and changes nothing; a caller double-invoking after a
// refresh must not re-trigger installation. A platform rejection
// resolves as dismissed, not as an error.
func (f *Flow) Prompt() (Outcome, error) {
	f.mu.Lock()
	if f.phase != phasePromptReady {
		f.mu.Unlock()
		return "", ErrNoPrompt
	}
	// Consume immediately so concurrent callers see the prompt gone.
	f.phase = phaseNoPrompt
	f.mu.Unlock()

	outcome := OutcomeAccepted
	if err := f.platform.Install(); err != nil {
		f.logger.Warn("install prompt dismissed", zap.Error(err))
		outcome = OutcomeDismissed
	}

	f.mu.Lock()
	if outcome == OutcomeAccepted {
		f.phase = phaseRetired
		f.installed = true
	}
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.RecordInstallPrompt(string(outcome))
	}
	f.logger.Info("install prompt resolved", zap.String("outcome", string(outcome)))

	f.emit(Event{Kind: EventInstallable, Enabled: false})
	if outcome == OutcomeAccepted {
		if f.metrics != nil {
			f.metrics.SetInstalled(true)
		}
		f.emit(Event{Kind: EventInstalled, Enabled: true})
	}
	return outcome, nil
}

func (f *Flow) watchLoop(ctx context.Context, updates <-chan bool) {
	for {
		select {
		case installed, ok := <-updates:
			if !ok {
				return
			}
			f.onExternalChange(installed)
		case <-ctx.Done():
			return
		}
	}
}

// onExternalChange absorbs installs and uninstalls that bypass the
// flow. An install always forces installed state and disarms any
// prompt. An uninstall re-arms one only when the prompt was never
// accepted; acceptance retires it for good.
func (f *Flow) onExternalChange(installed bool) {
	f.mu.Lock()
	if installed == f.installed {
		f.mu.Unlock()
		return
	}
	f.installed = installed

	events := []Event{{Kind: EventInstalled, Enabled: installed}}
	if installed {
		if f.phase == phasePromptReady {
			f.phase = phaseNoPrompt
			events = append(events, Event{Kind: EventInstallable, Enabled: false})
		}
	} else if f.phase == phaseNoPrompt {
		f.phase = phasePromptReady
		events = append(events, Event{Kind: EventInstallable, Enabled: true})
	}
	f.mu.Unlock()

	if f.metrics != nil {
		f.metrics.SetInstalled(installed)
	}
	f.logger.Info("install state changed externally", zap.Bool("installed", installed))
	for _, ev := range events {
		f.emit(ev)
	}
}

func (f *Flow) emit(ev Event) {
	select {
	case f.events <- ev:
	default:
		f.logger.Warn("dropping install event")
	}
}
