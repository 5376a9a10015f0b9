package link

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/bluenviron/gomavlib/v3"
)

// DefaultBaud is used for serial connections that don't name a baud rate.
const DefaultBaud = 115200

// ParseAddress converts a connection string into a gomavlib endpoint.
//
// Supported forms:
//
//	udp:HOST:PORT      listen for UDP (same as udpin)
//	udpin:HOST:PORT    listen for UDP
//	udpout:HOST:PORT   send to a UDP peer
//	udpbcast:HOST:PORT UDP broadcast
//	tcp:HOST:PORT      connect to a TCP server
//	tcpin:HOST:PORT    accept TCP connections
//	serial:DEVICE[,BAUD]
//	DEVICE[,BAUD]      e.g. /dev/ttyACM0 or COM3,57600
func ParseAddress(address string, baud int) (gomavlib.EndpointConf, error) {
	if baud <= 0 {
		baud = DefaultBaud
	}

	address = strings.TrimSpace(address)
	if address == "" {
		return nil, fmt.Errorf("empty connection string")
	}

	scheme, rest, found := strings.Cut(address, ":")
	if !found || isDevicePath(address) {
		return parseSerial(address, baud)
	}

	switch strings.ToLower(scheme) {
	case "udp", "udpin":
		if err := checkHostPort(rest); err != nil {
			return nil, err
		}
		return gomavlib.EndpointUDPServer{Address: rest}, nil
	case "udpout":
		if err := checkHostPort(rest); err != nil {
			return nil, err
		}
		return gomavlib.EndpointUDPClient{Address: rest}, nil
	case "udpbcast":
		if err := checkHostPort(rest); err != nil {
			return nil, err
		}
		return gomavlib.EndpointUDPBroadcast{BroadcastAddress: rest}, nil
	case "tcp":
		if err := checkHostPort(rest); err != nil {
			return nil, err
		}
		return gomavlib.EndpointTCPClient{Address: rest}, nil
	case "tcpin":
		if err := checkHostPort(rest); err != nil {
			return nil, err
		}
		return gomavlib.EndpointTCPServer{Address: rest}, nil
	case "serial":
		return parseSerial(rest, baud)
	}

	return nil, fmt.Errorf("unsupported connection scheme %q", scheme)
}

func parseSerial(s string, baud int) (gomavlib.EndpointConf, error) {
	device, rate, hasRate := strings.Cut(s, ",")
	if device == "" {
		return nil, fmt.Errorf("missing serial device in %q", s)
	}
	if hasRate {
		n, err := strconv.Atoi(rate)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid baud rate %q", rate)
		}
		baud = n
	}
	return gomavlib.EndpointSerial{Device: device, Baud: baud}, nil
}

// isDevicePath reports whether s is an absolute device path. Windows ports
// (COM3) have no colon and are caught by the caller.
func isDevicePath(s string) bool {
	return strings.HasPrefix(s, "/")
}

func checkHostPort(s string) error {
	_, port, err := net.SplitHostPort(s)
	if err != nil {
		return fmt.Errorf("invalid address %q: %w", s, err)
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return fmt.Errorf("invalid port in %q", s)
	}
	return nil
}
