// Package hub forwards drawer reports to the downstream hub over a serial
// line. The protocol is line oriented text:
//
//	TN1 2umo 3umo 1u      header: unit number, then cabinet id and mask letters
//	>2u00 2m45 2o??<      one line per cycle, one token per drawer
package hub

import (
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/sweeney/drawer-sensor/internal/logic"
)

// DefaultBaudRate is the hub line speed.
const DefaultBaudRate = 115200

var errNotOpen = errors.New("hub link not open")

// Layout returns the cabinet id and mask letters of each cabinet, e.g. "2umo".
func Layout(cabinets []logic.Cabinet) []string {
	layout := make([]string, len(cabinets))
	for i, cab := range cabinets {
		layout[i] = fmt.Sprintf("%d%s", cab.ID, cab.Mask)
	}
	return layout
}

// FormatHeader renders the header line from a unit and its layout.
func FormatHeader(unit int, layout []string) string {
	return strings.Join(append([]string{fmt.Sprintf("TN%d", unit)}, layout...), " ")
}

// Header renders the startup line announcing the cabinet layout of a unit.
func Header(unit int, cabinets []logic.Cabinet) string {
	return FormatHeader(unit, Layout(cabinets))
}

// Line renders one cycle of reports.
func Line(reports []logic.Report) string {
	tokens := make([]string, len(reports))
	for i, r := range reports {
		tokens[i] = r.Token()
	}
	return ">" + strings.Join(tokens, " ") + "<"
}

// Link writes header and cycle lines to the hub. A Link on a serial port
// opens it on first use and reopens it on the next send after a failure.
type Link struct {
	mu        sync.Mutex
	w         io.Writer
	dial      func() (io.Writer, error)
	header    string
	connected bool
	sent      int
}

// New creates a Link writing to w.
func New(w io.Writer) *Link {
	return &Link{w: w, connected: true}
}

// Dial returns a Link on the serial port. Nothing is opened until the first
// send, so a hub plugged in later is picked up.
func Dial(port string, baudRate int) *Link {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}
	return newDialer(func() (io.Writer, error) {
		p, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
		if err != nil {
			return nil, fmt.Errorf("open serial port %s: %w", port, err)
		}
		return p, nil
	})
}

func newDialer(dial func() (io.Writer, error)) *Link {
	return &Link{dial: dial}
}

// Ports lists the serial ports of the system.
func Ports() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	return ports, nil
}

// SendHeader writes the header line. It is repeated after every reopen.
func (l *Link) SendHeader(unit int, cabinets []logic.Cabinet) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.header = Header(unit, cabinets)
	if !l.connected && l.dial != nil {
		// Opening writes the header.
		return l.ensureOpen()
	}
	return l.writeLine(l.header)
}

// SendCycle writes one cycle line.
func (l *Link) SendCycle(reports []logic.Report) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensureOpen(); err != nil {
		return err
	}
	return l.writeLine(Line(reports))
}

// IsConnected reports whether the last write succeeded.
func (l *Link) IsConnected() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.connected
}

// Sent returns the number of lines written.
func (l *Link) Sent() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.sent
}

// Close closes the underlying port if it is closable.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.connected = false
	if c, ok := l.w.(io.Closer); ok {
		l.w = nil
		return c.Close()
	}
	return nil
}

func (l *Link) ensureOpen() error {
	if l.connected || l.dial == nil {
		return nil
	}
	w, err := l.dial()
	if err != nil {
		return err
	}
	if l.sent > 0 {
		log.Printf("hub: serial port reopened")
	}
	l.w = w
	l.connected = true
	if l.header != "" {
		return l.writeLine(l.header)
	}
	return nil
}

func (l *Link) writeLine(s string) error {
	if l.w == nil {
		return errNotOpen
	}
	if _, err := io.WriteString(l.w, s+"\n"); err != nil {
		if l.connected {
			log.Printf("hub: write failed: %v", err)
		}
		l.connected = false
		if c, ok := l.w.(io.Closer); ok && l.dial != nil {
			c.Close()
		}
		return fmt.Errorf("write hub line: %w", err)
	}
	l.connected = true
	l.sent++
	return nil
}
