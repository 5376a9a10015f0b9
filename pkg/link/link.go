// Package link drives a vehicle's autopilot over MAVLink: it waits for the
// vehicle's heartbeat, overrides and releases RC channels, and samples the
// raw servo outputs.
package link

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bluenviron/gomavlib/v3"
	"github.com/bluenviron/gomavlib/v3/pkg/dialects/common"
	"github.com/bluenviron/gomavlib/v3/pkg/message"
	"github.com/charmbracelet/log"
)

// ChannelCount is the number of RC channels this package addresses.
const ChannelCount = 8

// RC override sentinels. They mean different things and must stay distinct.
const (
	// NoChange leaves a channel as it is.
	NoChange uint16 = 65535
	// Release hands a channel back to the RC receiver or autopilot.
	Release uint16 = 0
)

// GCSSystemID is the MAVLink system ID ArduPilot accepts overrides from by default.
const GCSSystemID = 255

const closeTimeout = 2 * time.Second

// DefaultStreamRate is the rate in Hz requested while sampling servo outputs.
const DefaultStreamRate = 10

// Node is the part of *gomavlib.Node the controller uses.
type Node interface {
	Events() chan gomavlib.Event
	WriteMessageAll(m message.Message) error
	Close()
}

// State is the lifecycle state of a Controller.
type State int

const (
	Disconnected State = iota
	Connected
	Live
)

func (s State) String() string {
	switch s {
	case Disconnected:
		return "disconnected"
	case Connected:
		return "connected"
	case Live:
		return "live"
	default:
		return "unknown"
	}
}

// Target identifies the vehicle commands are addressed to.
type Target struct {
	SystemID    uint8
	ComponentID uint8
}

// Feedback is one SERVO_OUTPUT_RAW sample.
type Feedback struct {
	Target
	TimeUsec uint32
	Port     uint8
	Servo    [ChannelCount]uint16
}

// Config holds connection options.
type Config struct {
	Baud       int         // serial baud rate, DefaultBaud if zero
	SystemID   uint8       // our system ID, GCSSystemID if zero
	StreamRate uint16      // feedback stream rate, DefaultStreamRate if zero
	Logger     *log.Logger // log.Default() if nil
}

// Controller owns one MAVLink connection to one vehicle.
type Controller struct {
	node   Node
	logger *log.Logger
	rate   uint16

	mu       sync.Mutex
	state    State
	target   Target
	lastBeat time.Time

	beats     chan Target
	feedback  chan Feedback
	done      chan struct{}
	closeOnce sync.Once
}

// Dial opens a connection described by address (see ParseAddress).
func Dial(address string, cfg Config) (*Controller, error) {
	ep, err := ParseAddress(address, cfg.Baud)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnection, err)
	}

	systemID := cfg.SystemID
	if systemID == 0 {
		systemID = GCSSystemID
	}

	node, err := gomavlib.NewNode(gomavlib.NodeConf{
		Endpoints:   []gomavlib.EndpointConf{ep},
		Dialect:     common.Dialect,
		OutVersion:  gomavlib.V2,
		OutSystemID: systemID,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrConnection, address, err)
	}

	return NewController(node, cfg), nil
}

// NewController wraps an already opened node. The controller takes ownership
// of the node and starts reading its events.
func NewController(node Node, cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	rate := cfg.StreamRate
	if rate == 0 {
		rate = DefaultStreamRate
	}

	c := &Controller{
		node:     node,
		logger:   logger,
		rate:     rate,
		state:    Connected,
		beats:    make(chan Target, 1),
		feedback: make(chan Feedback, 1),
		done:     make(chan struct{}),
	}
	go c.run()
	return c
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Target returns the vehicle found by WaitForLiveness.
func (c *Controller) Target() Target {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.target
}

// LastHeartbeat returns when the last vehicle heartbeat was seen.
func (c *Controller) LastHeartbeat() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastBeat
}

// WaitForLiveness blocks until a heartbeat from a vehicle arrives and makes
// that vehicle the command target.
func (c *Controller) WaitForLiveness(ctx context.Context, timeout time.Duration) error {
	switch c.State() {
	case Live:
		return nil
	case Disconnected:
		return fmt.Errorf("%w: link closed", ErrNotReady)
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case t := <-c.beats:
		c.mu.Lock()
		if c.state == Connected {
			c.state = Live
			c.target = t
		}
		c.mu.Unlock()
		c.logger.Debug("Heartbeat received", "system", t.SystemID, "component", t.ComponentID)
		return nil
	case <-timer.C:
		return fmt.Errorf("%w: no heartbeat within %s", ErrTimeout, timeout)
	case <-ctx.Done():
		return ctx.Err()
	case <-c.done:
		return fmt.Errorf("%w: link closed", ErrNotReady)
	}
}

// OverrideChannels sends one RC_CHANNELS_OVERRIDE that sets the given
// channels and leaves every other channel at NoChange.
func (c *Controller) OverrideChannels(values map[int]uint16) error {
	target, err := c.ready()
	if err != nil {
		return err
	}

	raw := blankChannels()
	for ch, v := range values {
		if err := checkChannel(ch); err != nil {
			return err
		}
		raw[ch-1] = v
	}
	return c.write(overrideMessage(target, raw))
}

// ReleaseChannels sends one RC_CHANNELS_OVERRIDE that sets the given channels
// to Release and leaves every other channel at NoChange.
func (c *Controller) ReleaseChannels(channels ...int) error {
	target, err := c.ready()
	if err != nil {
		return err
	}

	raw := blankChannels()
	for _, ch := range channels {
		if err := checkChannel(ch); err != nil {
			return err
		}
		raw[ch-1] = Release
	}
	return c.write(overrideMessage(target, raw))
}

// PollFeedback starts the vehicle's data streams, waits for one
// SERVO_OUTPUT_RAW, and stops the streams again. It returns ErrTimeout if
// nothing arrives in time.
func (c *Controller) PollFeedback(ctx context.Context, timeout time.Duration) (*Feedback, error) {
	target, err := c.ready()
	if err != nil {
		return nil, err
	}

	// Drop a sample left over from an earlier stream.
	select {
	case <-c.feedback:
	default:
	}

	if err := c.write(streamMessage(target, c.rate, true)); err != nil {
		return nil, err
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case fb := <-c.feedback:
		if err := c.write(streamMessage(target, 0, false)); err != nil {
			c.logger.Warn("Failed to stop data stream", "err", err)
		}
		return &fb, nil
	case <-timer.C:
		return nil, fmt.Errorf("%w: no servo output within %s", ErrTimeout, timeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("%w: link closed", ErrNotReady)
	}
}

// Close closes the connection. It is safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.state = Disconnected
		c.mu.Unlock()

		c.node.Close()
		select {
		case <-c.done:
		case <-time.After(closeTimeout):
			c.logger.Warn("Event reader did not stop after close")
		}
	})
	return nil
}

func (c *Controller) ready() (Target, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != Live {
		return Target{}, fmt.Errorf("%w: link is %s", ErrNotReady, c.state)
	}
	return c.target, nil
}

func (c *Controller) write(m message.Message) error {
	if err := c.node.WriteMessageAll(m); err != nil {
		return fmt.Errorf("write %T: %w", m, err)
	}
	return nil
}

// run drains node events until the node is closed.
func (c *Controller) run() {
	defer close(c.done)

	for evt := range c.node.Events() {
		switch e := evt.(type) {
		case *gomavlib.EventFrame:
			c.handleFrame(Target{SystemID: e.SystemID(), ComponentID: e.ComponentID()}, e.Message())
		case *gomavlib.EventChannelOpen:
			c.logger.Debug("Channel open", "channel", e.Channel)
		case *gomavlib.EventChannelClose:
			c.logger.Debug("Channel closed", "channel", e.Channel)
		}
	}
}

func (c *Controller) handleFrame(from Target, msg message.Message) {
	switch m := msg.(type) {
	case *common.MessageHeartbeat:
		// Other ground stations are not vehicles.
		if m.Type == common.MAV_TYPE_GCS {
			return
		}
		c.mu.Lock()
		live := c.state == Live
		if !live || from.SystemID == c.target.SystemID {
			c.lastBeat = time.Now()
		}
		c.mu.Unlock()
		if !live {
			replace(c.beats, from)
		}

	case *common.MessageServoOutputRaw:
		c.mu.Lock()
		accept := c.state == Live && from.SystemID == c.target.SystemID
		c.mu.Unlock()
		if !accept {
			return
		}
		replace(c.feedback, Feedback{
			Target:   from,
			TimeUsec: m.TimeUsec,
			Port:     m.Port,
			Servo: [ChannelCount]uint16{
				m.Servo1Raw, m.Servo2Raw, m.Servo3Raw, m.Servo4Raw,
				m.Servo5Raw, m.Servo6Raw, m.Servo7Raw, m.Servo8Raw,
			},
		})
	}
}

// replace puts v on a one-slot channel, dropping whatever was there.
func replace[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- v:
		default:
		}
	}
}

func checkChannel(ch int) error {
	if ch < 1 || ch > ChannelCount {
		return fmt.Errorf("%w: %d (want 1..%d)", ErrInvalidChannel, ch, ChannelCount)
	}
	return nil
}

func blankChannels() [ChannelCount]uint16 {
	var raw [ChannelCount]uint16
	for i := range raw {
		raw[i] = NoChange
	}
	return raw
}

func overrideMessage(t Target, raw [ChannelCount]uint16) *common.MessageRcChannelsOverride {
	return &common.MessageRcChannelsOverride{
		TargetSystem:    t.SystemID,
		TargetComponent: t.ComponentID,
		Chan1Raw:        raw[0],
		Chan2Raw:        raw[1],
		Chan3Raw:        raw[2],
		Chan4Raw:        raw[3],
		Chan5Raw:        raw[4],
		Chan6Raw:        raw[5],
		Chan7Raw:        raw[6],
		Chan8Raw:        raw[7],
		// Extension channels default to 0, which would release them.
		Chan9Raw:  NoChange,
		Chan10Raw: NoChange,
		Chan11Raw: NoChange,
		Chan12Raw: NoChange,
		Chan13Raw: NoChange,
		Chan14Raw: NoChange,
		Chan15Raw: NoChange,
		Chan16Raw: NoChange,
		Chan17Raw: NoChange,
		Chan18Raw: NoChange,
	}
}

func streamMessage(t Target, rate uint16, start bool) *common.MessageRequestDataStream {
	var startStop uint8
	if start {
		startStop = 1
	}
	return &common.MessageRequestDataStream{
		TargetSystem:    t.SystemID,
		TargetComponent: t.ComponentID,
		ReqStreamId:     uint8(common.MAV_DATA_STREAM_ALL),
		ReqMessageRate:  rate,
		StartStop:       startStop,
	}
}
