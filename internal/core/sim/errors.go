package sim

import (
	"errors"
	"fmt"
)

var (
	ErrConfig           = errors.New("sim: invalid configuration")
	ErrNotLoaded        = errors.New("sim: no scenario loaded")
	ErrUnknownRobot     = errors.New("sim: unknown robot")
	ErrControllerFault  = errors.New("sim: controller fault")
	ErrSnapshotMismatch = errors.New("sim: snapshot does not match the loaded scenario")
	ErrNoTrace          = errors.New("sim: trace logging was never enabled")
)

// ControllerFault describes a controller step that returned an error,
// produced invalid commands or panicked. It matches ErrControllerFault.
type ControllerFault struct {
	Robot string
	Step  uint64
	Err   error
	Panic any
}

func (f *ControllerFault) Error() string {
	who := "controller"
	if f.Robot != "" {
		who = "controller of " + f.Robot
	}
	if f.Panic != nil {
		return fmt.Sprintf("%s panicked at step %d: %v", who, f.Step, f.Panic)
	}
	return fmt.Sprintf("%s failed at step %d: %v", who, f.Step, f.Err)
}

func (f *ControllerFault) Unwrap() error { return f.Err }

func (f *ControllerFault) Is(target error) bool { return target == ErrControllerFault }
