package pipeline

import (
	"errors"

	"base-distance/internal/calculator"
	"base-distance/internal/metrics"
	"base-distance/internal/models"
)

type SetKind int

const (
	BaseSet SetKind = iota
	SubbaseSet
)

func (k SetKind) Label() string {
	if k == BaseSet {
		return "Base"
	}
	return "Subbase"
}

// ResultSink consumes the assignments of a successful run.
type ResultSink interface {
	Deliver(assignments []models.Assignment, m calculator.Matrix) error
}

// SinkFunc adapts a function to ResultSink.
type SinkFunc func(assignments []models.Assignment, m calculator.Matrix) error

func (f SinkFunc) Deliver(assignments []models.Assignment, m calculator.Matrix) error {
	return f(assignments, m)
}

// PointSetSource produces a parsed point set.
type PointSetSource interface {
	Points() ([]models.Point, error)
}

// RunContext carries everything a stage reads or writes during one run.
type RunContext struct {
	Base        []models.Point
	Subbase     []models.Point
	Matrix      calculator.Matrix
	Assignments []models.Assignment
	Sink        ResultSink
	Log         calculator.LoggerCallback
	Progress    calculator.ProgressCallback
}

func (rc *RunContext) log(msg string) {
	if rc.Log != nil {
		rc.Log(msg)
	}
}

// Stage is one step of a run. Stages hold no state of their own.
type Stage interface {
	Name() string
	State() State
	Execute(rc *RunContext) error
}

type ValidateStage struct {
	Set SetKind
}

func (s ValidateStage) Name() string { return "validate " + s.Set.Label() }
func (s ValidateStage) State() State { return Validating }

func (s ValidateStage) Execute(rc *RunContext) error {
	points := rc.Base
	if s.Set == SubbaseSet {
		points = rc.Subbase
	}
	if len(points) == 0 {
		rc.log("Error: " + s.Set.Label() + " points are not loaded.")
		return &ValidationError{Set: s.Set, Message: missingPointsMessage(s.Set)}
	}
	return nil
}

type MatrixStage struct{}

func (MatrixStage) Name() string { return "distance matrix" }
func (MatrixStage) State() State { return ComputingMatrix }

func (MatrixStage) Execute(rc *RunContext) error {
	rc.log("Starting distance calculations...")
	m, err := calculator.ComputeMatrix(rc.Base, rc.Subbase, rc.Progress, rc.Log)
	if err != nil {
		rc.log("Error: Distance matrix could not be calculated.")
		return &ComputationError{Stage: "distance matrix", Err: err}
	}
	if m.Empty() {
		rc.log("Error: Distance matrix could not be calculated.")
		return &ComputationError{Stage: "distance matrix", Err: calculator.ErrEmptyMatrix}
	}
	metrics.MatrixCellsTotal.Add(float64(m.Rows() * m.Cols()))
	rc.Matrix = m
	return nil
}

type ResolveStage struct{}

func (ResolveStage) Name() string { return "closest base" }
func (ResolveStage) State() State { return Resolving }

func (ResolveStage) Execute(rc *RunContext) error {
	rc.log("Finding closest base to each subbase using distance matrix...")
	assignments, err := calculator.ResolveNearest(rc.Matrix, rc.Base, rc.Subbase)
	if err != nil {
		return &ComputationError{Stage: "closest base", Err: err}
	}
	rc.Assignments = assignments
	rc.log("Closest bases calculated successfully.")
	return nil
}

type DeliverStage struct{}

func (DeliverStage) Name() string { return "deliver" }
func (DeliverStage) State() State { return Delivering }

func (DeliverStage) Execute(rc *RunContext) error {
	if rc.Sink == nil {
		return nil
	}
	if err := rc.Sink.Deliver(rc.Assignments, rc.Matrix); err != nil {
		return &ComputationError{Stage: "deliver", Err: err}
	}
	return nil
}

// DefaultStages returns the standard run: validate base, validate subbase,
// matrix, closest base, deliver.
func DefaultStages() []Stage {
	return []Stage{
		ValidateStage{Set: BaseSet},
		ValidateStage{Set: SubbaseSet},
		MatrixStage{},
		ResolveStage{},
		DeliverStage{},
	}
}

// IsValidation reports whether err is a *ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
