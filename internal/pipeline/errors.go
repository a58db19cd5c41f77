package pipeline

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kingrea/greenlight/internal/oracle"
)

// ErrSuperseded is returned by a run whose generation was overtaken by a
// newer run. Its results were discarded.
var ErrSuperseded = errors.New("pipeline: run superseded by a newer generation")

// StageFailure is the single error a run reports when one of its stages
// fails. Cause is usually an *oracle.Error.
type StageFailure struct {
	Stage StageID
	Cause error
}

func (f *StageFailure) Error() string {
	return fmt.Sprintf("pipeline: stage %s failed: %v", f.Stage, f.Cause)
}

func (f *StageFailure) Unwrap() error {
	return f.Cause
}

// Kind reports the oracle failure class, or "" when the cause is not an
// oracle error.
func (f *StageFailure) Kind() oracle.Kind {
	var oe *oracle.Error
	if errors.As(f.Cause, &oe) {
		return oe.Kind
	}
	return ""
}

type stageFailureJSON struct {
	Stage StageID     `json:"stage"`
	Kind  oracle.Kind `json:"kind,omitempty"`
	Error string      `json:"error"`
}

// MarshalJSON renders the failure for the state bridge.
func (f StageFailure) MarshalJSON() ([]byte, error) {
	out := stageFailureJSON{Stage: f.Stage, Kind: f.Kind()}
	if f.Cause != nil {
		out.Error = f.Cause.Error()
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a failure read back from the state bridge. The cause
// keeps its oracle kind so errors.Is still matches.
func (f *StageFailure) UnmarshalJSON(data []byte) error {
	var in stageFailureJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	f.Stage = in.Stage
	cause := errors.New(in.Error)
	if in.Kind != "" {
		f.Cause = &oracle.Error{Kind: in.Kind, Stage: string(in.Stage), Err: cause}
		return nil
	}
	f.Cause = cause
	return nil
}
