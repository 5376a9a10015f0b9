package robot

import "errors"

var (
	ErrInvalidConfig  = errors.New("robot: invalid config")
	ErrUnknownProfile = errors.New("robot: unknown profile")
	ErrClosed         = errors.New("robot: closed")

	// ErrBrakeNotSupported is returned by ApplyBrake for profiles with a
	// dedicated brake channel; driving that channel is not implemented.
	ErrBrakeNotSupported = errors.New("robot: brake channel not supported")

	// ErrNoFeedback means a command went out but no servo outputs came back.
	ErrNoFeedback = errors.New("robot: no servo feedback")
)
