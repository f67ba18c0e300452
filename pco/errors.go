package pco

import "fmt"

// UnknownCommandError is returned when execute_command is given a
// command string that names no transition in any state, per
// spec.md §4.2.
type UnknownCommandError struct {
	Command string
}

func (e *UnknownCommandError) Error() string {
	return fmt.Sprintf("unknown command %q", e.Command)
}

// IllegalTransitionError is returned when the command names a real
// transition, but not one defined from the current state.
type IllegalTransitionError struct {
	Command string
	From    StateType
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("command %q is not legal in state %s", e.Command, e.From)
}

// DecoderInitError wraps a failure in the controller's bring-up
// sequence (connect → arm → start → read size → stop → disconnect), per
// spec.md §4.4.
type DecoderInitError struct {
	Step string
	Err  error
}

func (e *DecoderInitError) Error() string {
	return fmt.Sprintf("decoder init failed at %s: %v", e.Step, e.Err)
}

func (e *DecoderInitError) Unwrap() error {
	return e.Err
}
