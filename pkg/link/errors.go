package link

import "errors"

var (
	// ErrConnection means the transport could not be opened.
	ErrConnection = errors.New("link: connection failed")
	// ErrTimeout means no heartbeat or feedback arrived in time.
	ErrTimeout = errors.New("link: timed out")
	// ErrNotReady means a command was issued before the vehicle was live,
	// or after the link was closed.
	ErrNotReady = errors.New("link: not ready")
	// ErrInvalidChannel means a channel number is outside 1..ChannelCount.
	ErrInvalidChannel = errors.New("link: invalid channel")
)
