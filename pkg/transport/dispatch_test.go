package transport

import (
	"bufio"
	"bytes"
	"io"
	"strings"
	"testing"

	"terpsd/pkg/eeprom"
)

// loopback is an io.ReadWriteCloser whose Write target and Read source
// are separate buffers, letting a test drive the Dispatcher and inspect
// everything it wrote.
type loopback struct {
	out bytes.Buffer
}

func (l *loopback) Read(p []byte) (int, error)  { return 0, io.EOF }
func (l *loopback) Write(p []byte) (int, error) { return l.out.Write(p) }
func (l *loopback) Close() error                { return nil }

func newTestDispatcher(reader eeprom.Reader) (*Dispatcher, *loopback) {
	lb := &loopback{}
	link := NewLink(lb, false)
	return NewDispatcher(link, reader, 22, 50_000, false), lb
}

func linesOf(t *testing.T, lb *loopback) []string {
	t.Helper()
	sc := bufio.NewScanner(strings.NewReader(lb.out.String()))
	var out []string
	for sc.Scan() {
		if sc.Text() != "" {
			out = append(out, sc.Text())
		}
	}
	return out
}

func TestDispatch_UnknownCommand(t *testing.T) {
	d, lb := newTestDispatcher(eeprom.NewSimulated())
	d.Handle("BOGUS")
	lines := linesOf(t, lb)
	if len(lines) < 2 || lines[0] != "ERR UNKNOWN_CMD" || lines[len(lines)-1] != "END" {
		t.Fatalf("unexpected output: %v", lines)
	}
}

func TestDispatch_EepromParseUnsupported(t *testing.T) {
	d, lb := newTestDispatcher(eeprom.NewSimulated())
	d.Handle("EEPROM.PARSE")
	lines := linesOf(t, lb)
	if len(lines) < 2 || lines[0] != "ERR UNSUPPORTED" || lines[len(lines)-1] != "END" {
		t.Fatalf("unexpected output: %v", lines)
	}
}

func TestDispatch_InfoDev(t *testing.T) {
	d, lb := newTestDispatcher(eeprom.NewSimulated())
	d.Handle("INFO.DEV")
	lines := linesOf(t, lb)
	if len(lines) < 2 {
		t.Fatalf("expected at least 2 lines, got %v", lines)
	}
	if !strings.HasPrefix(lines[0], "OK FW=terpsd") {
		t.Fatalf("unexpected INFO.DEV line: %q", lines[0])
	}
	if lines[len(lines)-1] != "END" {
		t.Fatalf("expected trailing END, got %v", lines)
	}
}

func TestDispatch_EepromDumpBadAddr(t *testing.T) {
	d, lb := newTestDispatcher(eeprom.NewSimulated())
	d.Handle("EEPROM.DUMP 600")
	lines := linesOf(t, lb)
	if len(lines) < 2 || lines[0] != "ERR BAD_ADDR" || lines[len(lines)-1] != "END" {
		t.Fatalf("unexpected output: %v", lines)
	}
}

func TestDispatch_EepromDumpDefaultsToFullRange(t *testing.T) {
	d, lb := newTestDispatcher(eeprom.NewSimulated())
	d.Handle("EEPROM.DUMP")
	lines := linesOf(t, lb)
	if len(lines) < 2 || !strings.HasPrefix(lines[0], "OK DEV=") {
		t.Fatalf("unexpected output: %v", lines)
	}
	if lines[len(lines)-1] != "END" {
		t.Fatalf("expected trailing END, got %v", lines)
	}
}

func TestDispatch_EepromDumpNoDevice(t *testing.T) {
	d, lb := newTestDispatcher(&alwaysNoDevice{})
	d.Handle("EEPROM.DUMP 0 16")
	lines := linesOf(t, lb)
	if len(lines) < 2 || lines[0] != "ERR UNIO_NO_DEVICE" || lines[len(lines)-1] != "END" {
		t.Fatalf("unexpected output: %v", lines)
	}
}

type alwaysNoDevice struct{}

func (alwaysNoDevice) Read(addr uint16, length int) (eeprom.Record, error) {
	return eeprom.Record{}, eeprom.ErrNoDevice
}
