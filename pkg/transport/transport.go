// Package transport frames outbound Frames onto a serial-like link and
// dispatches inbound host commands.
package transport

import (
	"bufio"
	"context"
	"io"
	"sync"
	"time"

	"go.bug.st/serial"

	"terpsd/pkg/protocol"
)

// DefaultWriteTimeout matches usb_cdc.cpp's 100ms ensure_write_capacity
// budget for every frame send.
const DefaultWriteTimeout = 100 * time.Millisecond

// Link wraps a byte stream (a real serial port, or an io.Pipe/buffer in
// tests) with frame-aware writes and line-aware reads.
type Link struct {
	rw     io.ReadWriteCloser
	reader *bufio.Reader

	mu     sync.Mutex
	binary bool
}

// Open opens portName at the given baud rate using go.bug.st/serial.
func Open(portName string, baud int) (*Link, error) {
	mode := &serial.Mode{BaudRate: baud}
	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, err
	}
	return NewLink(port, false), nil
}

// NewLink wraps an already-open stream. binary selects the wire framing
// SendFrame uses.
func NewLink(rw io.ReadWriteCloser, binary bool) *Link {
	return &Link{rw: rw, reader: bufio.NewReader(rw), binary: binary}
}

// SetBinary switches the stream framing, mirroring usb_cdc_set_mode.
func (l *Link) SetBinary(binary bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.binary = binary
}

// Close closes the underlying stream.
func (l *Link) Close() error {
	return l.rw.Close()
}

// EnsureWriteCapacity attempts a zero-length write probe and reports
// whether the link accepted it before timeout. Real serial ports have no
// notion of buffered capacity the way a USB CDC endpoint does, so on a
// Link backed by a plain io.ReadWriteCloser this degrades to "the link
// is still open," which is the best a hosted process can promise; a link
// that blocks past timeout on a real write is handled by writeWithTimeout
// below, matching ensure_write_capacity's role of never blocking a frame
// send past its deadline.
func (l *Link) EnsureWriteCapacity(timeout time.Duration) bool {
	done := make(chan struct{})
	var err error
	go func() {
		_, err = l.rw.Write(nil)
		close(done)
	}()
	select {
	case <-done:
		return err == nil
	case <-time.After(timeout):
		return false
	}
}

func (l *Link) writeWithTimeout(buf []byte, timeout time.Duration) bool {
	if !l.EnsureWriteCapacity(timeout) {
		return false
	}
	done := make(chan error, 1)
	go func() {
		_, err := l.rw.Write(buf)
		done <- err
	}()
	select {
	case err := <-done:
		return err == nil
	case <-time.After(timeout):
		return false
	}
}

// SendFrame encodes f per the link's current mode and writes it,
// returning false (frame dropped, no retry) if write capacity did not
// free up within timeout, matching usb_cdc_send_frame's contract.
func (l *Link) SendFrame(f protocol.Frame, timeout time.Duration) bool {
	l.mu.Lock()
	binary := l.binary
	l.mu.Unlock()

	var buf []byte
	if binary {
		buf = protocol.EncodeBinary(f)
	} else {
		buf = protocol.EncodeCSV(f)
	}
	return l.writeWithTimeout(buf, timeout)
}

// WriteLine writes text verbatim (the caller supplies any trailing
// newline), matching usb_cdc_write_line.
func (l *Link) WriteLine(text string) bool {
	return l.writeWithTimeout([]byte(text), DefaultWriteTimeout)
}

// ReadLine blocks until a newline-terminated command line arrives or ctx
// is done, matching usb_cdc_read_line's role feeding handle_cdc_command.
// Carriage returns are stripped, matching the firmware's CDC line
// reader.
func (l *Link) ReadLine(ctx context.Context) (string, bool) {
	type result struct {
		line string
		err  error
	}
	out := make(chan result, 1)
	go func() {
		line, err := l.reader.ReadString('\n')
		out <- result{line: line, err: err}
	}()

	select {
	case r := <-out:
		if r.err != nil {
			return "", false
		}
		return trimLineEndings(r.line), true
	case <-ctx.Done():
		return "", false
	}
}

func trimLineEndings(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
