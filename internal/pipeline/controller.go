// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package pipeline simulates the progress of the staged analysis pipeline.
// A Controller walks the stage catalog on a host-provided Scheduler: each stage
// ticks from 0 to 100 percent, settles briefly, and hands over to the next one.
// All state lives on the scheduler's single thread; every deferred callback
// carries the run generation it was created for and is dropped once stale.
package pipeline

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/rfpintel/agentflow/internal/logger"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetPipelineLogger()
		log = &l
	})
	return log
}

// Phase is the controller's state machine position
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRunning
	PhaseSettling
	PhaseComplete
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRunning:
		return "running"
	case PhaseSettling:
		return "settling"
	case PhaseComplete:
		return "complete"
	default:
		return "unknown"
	}
}

// MarshalText encodes the phase as its lowercase name.
func (p Phase) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// Timing controls how fast the simulated stages advance.
type Timing struct {
	StepSize     float64
	TickInterval time.Duration
	SettleDelay  time.Duration
}

// DefaultTiming matches the pacing of the original dashboard: 5% every 400ms,
// 500ms between stages.
func DefaultTiming() Timing {
	return Timing{
		StepSize:     5,
		TickInterval: 400 * time.Millisecond,
		SettleDelay:  500 * time.Millisecond,
	}
}

func (t Timing) validate() error {
	if t.StepSize <= 0 || t.TickInterval <= 0 || t.SettleDelay < 0 {
		return fmt.Errorf("%w: step %v, interval %s, settle %s",
			ErrInvalidTiming, t.StepSize, t.TickInterval, t.SettleDelay)
	}
	return nil
}

// DefaultDoneLabel is the message of a completed stage.
const DefaultDoneLabel = "Analysis complete"

// RunState is the progress of the active run.
type RunState struct {
	ActiveStageIndex    int     `json:"active_stage_index"`
	ActiveStageProgress float64 `json:"active_stage_progress"`
	Complete            bool    `json:"complete"`
}

// Snapshot is a consistent copy of the controller state.
type Snapshot struct {
	Phase      Phase               `json:"phase"`
	RunID      string              `json:"run_id,omitempty"`
	Generation uint64              `json:"generation"`
	Run        RunState            `json:"run"`
	Stages     []StageRuntimeState `json:"stages"`
}

// Option configures a Controller.
type Option func(*Controller)

// WithTiming overrides DefaultTiming.
func WithTiming(t Timing) Option {
	return func(c *Controller) { c.timing = t }
}

// WithDoneLabel sets the message shown on completed stages.
func WithDoneLabel(label string) Option {
	return func(c *Controller) {
		if label != "" {
			c.doneLabel = label
		}
	}
}

// WithCompletion sets the callback invoked once per run after the last stage settles.
// It receives the payload given to Activate.
func WithCompletion(fn func(payload any)) Option {
	return func(c *Controller) { c.onComplete = fn }
}

// WithObserver adds an observer of lifecycle events. May be given more than once.
func WithObserver(fn Observer) Option {
	return func(c *Controller) {
		if fn != nil {
			c.observers = append(c.observers, fn)
		}
	}
}

// Controller is the pipeline state machine:
// Idle → Running(i) → Settling(i) → Running(i+1) → … → Complete → Idle.
// It is not safe for concurrent use; call it only from the scheduler's thread.
type Controller struct {
	catalog    *Catalog
	sched      Scheduler
	timing     Timing
	doneLabel  string
	status     *StatusAggregator
	onComplete func(payload any)
	observers  []Observer

	phase      Phase
	run        RunState
	generation uint64
	runID      string
	payload    any

	timer        *StageTimer
	cancelSettle CancelFunc
}

// NewController validates the catalog and timing and returns an idle controller.
func NewController(catalog *Catalog, sched Scheduler, opts ...Option) (*Controller, error) {
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	if sched == nil {
		return nil, ErrNoScheduler
	}

	c := &Controller{
		catalog:   catalog,
		sched:     sched,
		timing:    DefaultTiming(),
		doneLabel: DefaultDoneLabel,
		status:    NewStatusAggregator(catalog),
	}
	for _, opt := range opts {
		opt(c)
	}

	if err := c.timing.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

// Aggregator returns the stage status read model.
func (c *Controller) Aggregator() *StatusAggregator {
	return c.status
}

// Catalog returns the catalog the controller walks.
func (c *Controller) Catalog() *Catalog {
	return c.catalog
}

// Phase returns the current state machine position.
func (c *Controller) Phase() Phase {
	return c.phase
}

// RunID returns the ID of the current run, empty when idle.
func (c *Controller) RunID() string {
	return c.runID
}

// Snapshot returns a copy of the controller state.
func (c *Controller) Snapshot() Snapshot {
	return Snapshot{
		Phase:      c.phase,
		RunID:      c.runID,
		Generation: c.generation,
		Run:        c.run,
		Stages:     c.status.Stages(),
	}
}

// Activate starts a new run at stage 0. The payload is handed back to the
// completion callback untouched.
func (c *Controller) Activate(payload any) error {
	if c.phase != PhaseIdle {
		return fmt.Errorf("cannot activate while %s: %w", c.phase, ErrAlreadyRunning)
	}

	c.generation++
	c.runID = uuid.New().String()
	c.payload = payload
	c.run = RunState{}

	getLog().Info().
		Str("run_id", c.runID).
		Uint64("generation", c.generation).
		Int("stages", c.catalog.Len()).
		Msg("Pipeline run activated")

	gen := c.generation
	c.phase = PhaseRunning
	c.emit(Event{Type: EventRunStarted, Payload: payload})
	if gen != c.generation {
		return nil
	}
	c.startStage(gen, 0)
	return nil
}

// Deactivate stops the run, cancels pending timers and resets every stage to
// pending. It is a no-op when idle.
func (c *Controller) Deactivate() {
	if c.phase == PhaseIdle {
		return
	}

	// Bumping the generation neutralizes anything the scheduler already dispatched.
	c.generation++
	if c.timer != nil {
		c.timer.Cancel()
		c.timer = nil
	}
	if c.cancelSettle != nil {
		c.cancelSettle()
		c.cancelSettle = nil
	}

	stopped := Event{Type: EventRunStopped, RunID: c.runID, Payload: c.payload, StageIndex: c.run.ActiveStageIndex}
	getLog().Info().Str("run_id", c.runID).Str("phase", c.phase.String()).Msg("Pipeline run deactivated")

	c.phase = PhaseIdle
	c.run = RunState{}
	c.runID = ""
	c.payload = nil
	c.status.reset()

	c.notify(stopped)
}

func (c *Controller) stale(gen uint64) bool {
	if gen != c.generation {
		getLog().Debug().Uint64("generation", gen).Uint64("current", c.generation).Msg("Dropping stale callback")
		return true
	}
	return false
}

func (c *Controller) startStage(gen uint64, i int) {
	stage := c.catalog.At(i)

	c.phase = PhaseRunning
	c.cancelSettle = nil
	c.run.ActiveStageIndex = i
	c.run.ActiveStageProgress = 0

	message := ActivityFor(0, stage.Activities)
	c.status.set(i, StatusInProgress, message)
	c.emit(Event{Type: EventStageStarted, StageIndex: i, StageID: stage.ID, StageName: stage.Name, Message: message})
	// An observer may have deactivated the run
	if gen != c.generation {
		return
	}

	c.timer = NewStageTimer(c.sched,
		func(progress float64) { c.onTick(gen, i, progress) },
		func() { c.onStageDone(gen, i) },
	)
	if err := c.timer.Start(c.timing.StepSize, c.timing.TickInterval); err != nil {
		// Timing is validated at construction, so this only fires on a programming error.
		getLog().Error().Err(err).Int("stage", i).Msg("Failed to start stage timer")
	}
}

func (c *Controller) onTick(gen uint64, i int, progress float64) {
	if c.stale(gen) {
		return
	}

	stage := c.catalog.At(i)
	if progress > c.run.ActiveStageProgress {
		c.run.ActiveStageProgress = progress
	}
	message := ActivityFor(c.run.ActiveStageProgress, stage.Activities)
	c.status.set(i, StatusInProgress, message)
	c.emit(Event{
		Type: EventStageProgress, StageIndex: i, StageID: stage.ID, StageName: stage.Name,
		Progress: c.run.ActiveStageProgress, Message: message,
	})
}

func (c *Controller) onStageDone(gen uint64, i int) {
	if c.stale(gen) {
		return
	}

	stage := c.catalog.At(i)
	c.timer = nil
	c.run.ActiveStageProgress = 100
	c.status.set(i, StatusComplete, c.doneLabel)
	c.phase = PhaseSettling

	getLog().Debug().Str("run_id", c.runID).Str("stage", stage.ID).Msg("Stage complete")
	c.emit(Event{
		Type: EventStageCompleted, StageIndex: i, StageID: stage.ID, StageName: stage.Name,
		Progress: 100, Message: c.doneLabel,
	})
	if gen != c.generation {
		return
	}

	c.cancelSettle = c.sched.AfterFunc(c.timing.SettleDelay, func() { c.afterSettle(gen, i) })
}

func (c *Controller) afterSettle(gen uint64, i int) {
	if c.stale(gen) {
		return
	}

	if i+1 < c.catalog.Len() {
		c.startStage(gen, i+1)
		return
	}
	c.complete()
}

func (c *Controller) complete() {
	c.phase = PhaseComplete
	c.cancelSettle = nil
	c.run.Complete = true

	gen := c.generation

	getLog().Info().Str("run_id", c.runID).Msg("Pipeline run complete")

	// The callback runs before observers so it always sees this run, even
	// when an observer deactivates or restarts the controller.
	if c.onComplete != nil {
		c.onComplete(c.payload)
		if gen != c.generation || c.phase != PhaseComplete {
			return
		}
	}
	c.emit(Event{Type: EventRunCompleted, StageIndex: c.run.ActiveStageIndex, Payload: c.payload})
}

// emit stamps run-level fields and notifies observers.
func (c *Controller) emit(e Event) {
	e.RunID = c.runID
	c.notify(e)
}

func (c *Controller) notify(e Event) {
	e.Generation = c.generation
	e.At = c.sched.Now()
	for _, fn := range c.observers {
		fn(e)
	}
}
