package bus

import (
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"go.bug.st/serial"
)

// Port is the byte stream to a gateway.
//
// Read may return (0, nil) when a read timeout expires; the session treats
// that as idle time. Close must unblock a pending Read.
type Port interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

// defaultSerialReadTimeout bounds a single serial read so the read loop can
// observe shutdown on platforms where Close does not interrupt Read.
const defaultSerialReadTimeout = 500 * time.Millisecond

// byIDGlob lists the stable udev names of USB serial adapters.
const byIDGlob = "/dev/serial/by-id/*"

// SerialConfig describes a serial gateway connection.
type SerialConfig struct {
	// Device is the port name, e.g. "/dev/ttyUSB0" or a /dev/serial/by-id path.
	Device string

	// Baud is the line speed: 57600 for the FAM14, FGW14-USB and ESP3
	// sticks, 9600 for the FAM-USB.
	Baud int

	// ReadTimeout bounds a single read. Default: 500ms.
	ReadTimeout time.Duration
}

// SerialPort is a Port on a local serial device.
type SerialPort struct {
	serial.Port
	device string
}

// OpenSerial opens a serial device in 8N1 mode.
//
// Parameters:
//   - cfg: Device, baud rate and read timeout
//
// Returns:
//   - *SerialPort: Open port
//   - error: If the device cannot be opened or configured
func OpenSerial(cfg SerialConfig) (*SerialPort, error) {
	if cfg.Device == "" {
		return nil, fmt.Errorf("bus: serial device is required")
	}
	if cfg.Baud <= 0 {
		return nil, fmt.Errorf("bus: invalid baud rate %d", cfg.Baud)
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = defaultSerialReadTimeout
	}

	mode := &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8, //nolint:mnd // 8N1
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	p, err := serial.Open(cfg.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("bus: open %s: %w", cfg.Device, err)
	}
	if err := p.SetReadTimeout(cfg.ReadTimeout); err != nil {
		p.Close()
		return nil, fmt.Errorf("bus: set read timeout on %s: %w", cfg.Device, err)
	}
	return &SerialPort{Port: p, device: cfg.Device}, nil
}

// Device returns the device name the port was opened with.
func (p *SerialPort) Device() string { return p.device }

// ListPorts returns the serial ports of the host followed by their
// /dev/serial/by-id aliases, without duplicates.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("bus: list serial ports: %w", err)
	}

	byID, _ := filepath.Glob(byIDGlob)

	seen := make(map[string]bool, len(ports)+len(byID))
	out := make([]string, 0, len(ports)+len(byID))
	for _, group := range [][]string{ports, byID} {
		sorted := append([]string(nil), group...)
		sort.Strings(sorted)
		for _, p := range sorted {
			if !seen[p] {
				seen[p] = true
				out = append(out, p)
			}
		}
	}
	return out, nil
}
