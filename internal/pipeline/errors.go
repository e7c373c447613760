package pipeline

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned when a run is requested while another holds the trigger.
var ErrRunInProgress = errors.New("a calculation is already running")

// ValidationError is a user-facing rejection of the input point sets.
type ValidationError struct {
	Set     SetKind
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s validation failed: %s", e.Set.Label(), e.Message)
}

// ComputationError wraps a failure of the matrix or assignment stages.
type ComputationError struct {
	Stage string
	Err   error
}

func (e *ComputationError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *ComputationError) Unwrap() error { return e.Err }

func missingPointsMessage(set SetKind) string {
	label := set.Label()
	return fmt.Sprintf("%s points are not loaded. Please upload the %s file in the correct format for the selected lookup type. "+
		"Expected columns for Latitude/Longitude lookup: Name, Latitude, Longitude. "+
		"If the file contains addresses instead, select Address as the lookup type and upload it again.", label, label)
}
