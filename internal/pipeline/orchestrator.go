package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"base-distance/internal/calculator"
	"base-distance/internal/geocode"
	"base-distance/internal/metrics"
	"base-distance/internal/models"
	"github.com/rs/zerolog/log"
)

type State int

const (
	Idle State = iota
	Geocoding
	Validating
	ComputingMatrix
	Resolving
	Delivering
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Geocoding:
		return "geocoding"
	case Validating:
		return "validating"
	case ComputingMatrix:
		return "computing_matrix"
	case Resolving:
		return "resolving"
	case Delivering:
		return "delivering"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Request describes one run.
type Request struct {
	Base     []models.Point
	Subbase  []models.Point
	Sink     ResultSink
	Log      calculator.LoggerCallback
	Progress calculator.ProgressCallback
}

// Result is the output of a successful run.
type Result struct {
	Base        []models.Point      `json:"base"`
	Subbase     []models.Point      `json:"subbase"`
	Matrix      calculator.Matrix   `json:"matrix"`
	Assignments []models.Assignment `json:"assignments"`
	Duration    time.Duration       `json:"duration"`
}

// Orchestrator runs stages in order and owns the trigger that keeps runs
// from overlapping. The last successful result stays readable until the
// next successful run replaces it.
type Orchestrator struct {
	stages []Stage

	// StrictCoordinates drops points outside [-90,90] x [-180,180].
	StrictCoordinates bool
	// OnRelease runs after every run, whatever the outcome.
	OnRelease func()
	// OnStateChange observes every transition.
	OnStateChange func(from, to State)

	running atomic.Bool

	mu    sync.RWMutex
	state State
	last  *Result
}

func NewOrchestrator(stages ...Stage) *Orchestrator {
	if len(stages) == 0 {
		stages = DefaultStages()
	}
	return &Orchestrator{stages: stages}
}

func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state
}

// Running reports whether the trigger is currently held.
func (o *Orchestrator) Running() bool { return o.running.Load() }

// Last returns the most recent successful result, or nil.
func (o *Orchestrator) Last() *Result {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.last
}

func (o *Orchestrator) setState(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	o.mu.Unlock()
	if from != to && o.OnStateChange != nil {
		o.OnStateChange(from, to)
	}
}

func (o *Orchestrator) acquire() bool {
	return o.running.CompareAndSwap(false, true)
}

func (o *Orchestrator) release() {
	o.setState(Idle)
	o.running.Store(false)
	if o.OnRelease != nil {
		o.OnRelease()
	}
}

// Run executes the stages over the given point sets. The first failing
// stage aborts the run; the trigger is released in every case.
func (o *Orchestrator) Run(req Request) (*Result, error) {
	if !o.acquire() {
		return nil, ErrRunInProgress
	}
	defer o.release()
	return o.run(req)
}

// RunAddresses geocodes both address tables and then runs the stages. Rows
// that fail to geocode are dropped; an empty set after geocoding fails validation.
func (o *Orchestrator) RunAddresses(ctx context.Context, adapter *geocode.Adapter, baseRecords, subbaseRecords []geocode.AddressRecord, req Request) (*Result, []geocode.Report, error) {
	if !o.acquire() {
		return nil, nil, ErrRunInProgress
	}
	defer o.release()

	logf(req.Log, "Getting longitude and latitude from addresses...")
	o.setState(Geocoding)
	if req.Log != nil {
		adapter = adapter.WithLog(req.Log)
	}
	basePoints, baseReport := adapter.Geocode(ctx, BaseSet.Label(), baseRecords)
	subbasePoints, subbaseReport := adapter.Geocode(ctx, SubbaseSet.Label(), subbaseRecords)
	reports := []geocode.Report{baseReport, subbaseReport}

	if len(basePoints) == 0 || len(subbasePoints) == 0 {
		set := BaseSet
		if len(basePoints) > 0 {
			set = SubbaseSet
		}
		logf(req.Log, "Error: Could not geocode all addresses.")
		err := &ValidationError{Set: set, Message: "could not geocode any address, please check the address file"}
		o.fail(err)
		return nil, reports, err
	}

	logf(req.Log, "Geocoding successful. Calculating distances...")
	req.Base = basePoints
	req.Subbase = subbasePoints
	res, err := o.run(req)
	return res, reports, err
}

// Resolve recomputes closest bases from the last matrix.
func (o *Orchestrator) Resolve() ([]models.Assignment, error) {
	last := o.Last()
	if last == nil || last.Matrix.Empty() {
		return nil, calculator.ErrEmptyMatrix
	}
	return calculator.ResolveNearest(last.Matrix, last.Base, last.Subbase)
}

func (o *Orchestrator) run(req Request) (*Result, error) {
	start := time.Now()

	base := o.prepare(req.Log, BaseSet, req.Base)
	subbase := o.prepare(req.Log, SubbaseSet, req.Subbase)

	rc := &RunContext{
		Base:     base,
		Subbase:  subbase,
		Sink:     req.Sink,
		Log:      req.Log,
		Progress: req.Progress,
	}

	for _, stage := range o.stages {
		o.setState(stage.State())
		if err := stage.Execute(rc); err != nil {
			o.fail(err)
			logf(req.Log, "Distance calculation aborted: "+err.Error())
			return nil, err
		}
	}

	res := &Result{
		Base:        base,
		Subbase:     subbase,
		Matrix:      rc.Matrix,
		Assignments: rc.Assignments,
		Duration:    time.Since(start),
	}

	o.mu.Lock()
	o.last = res
	o.mu.Unlock()

	metrics.RunsTotal.WithLabelValues("ok").Inc()
	metrics.RunDurationMs.Observe(float64(res.Duration.Milliseconds()))
	log.Info().
		Int("bases", len(base)).
		Int("subbases", len(subbase)).
		Dur("duration", res.Duration).
		Msg("distance run completed")
	return res, nil
}

func (o *Orchestrator) fail(err error) {
	o.setState(Failed)
	outcome := "computation_error"
	if IsValidation(err) {
		outcome = "validation_error"
	}
	metrics.RunsTotal.WithLabelValues(outcome).Inc()
	log.Warn().Err(err).Msg("distance run aborted")
}

// prepare drops points that cannot take part in the matrix.
func (o *Orchestrator) prepare(logger calculator.LoggerCallback, set SetKind, points []models.Point) []models.Point {
	valid, dropped := models.FilterValid(points)
	if dropped > 0 {
		logf(logger, fmt.Sprintf("[%s] Skipped %d points with invalid coordinates.", set.Label(), dropped))
	}
	if o.StrictCoordinates {
		var outOfRange int
		valid, outOfRange = models.FilterInRange(valid)
		if outOfRange > 0 {
			logf(logger, fmt.Sprintf("[%s] Skipped %d points outside the valid latitude/longitude range.", set.Label(), outOfRange))
		}
	}
	return valid
}

func logf(logger calculator.LoggerCallback, msg string) {
	if logger != nil {
		logger(msg)
	}
}
