package transport

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"terpsd/pkg/eeprom"
	hosterrors "terpsd/pkg/errors"
)

// Dispatcher answers line-based host commands over a Link, grounded on
// main.cpp's handle_cdc_command/handle_eeprom_dump/handle_info_dev.
type Dispatcher struct {
	link   *Link
	eeprom eeprom.Reader
	log    *logrus.Logger

	unioGPIO       uint32
	unioBitrateBps uint32
	binaryMode     bool

	lastValid  bool
	lastRecord eeprom.Record
}

// NewDispatcher builds a Dispatcher answering over link.
func NewDispatcher(link *Link, reader eeprom.Reader, unioGPIO, unioBitrateBps uint32, binaryMode bool) *Dispatcher {
	return &Dispatcher{
		link:           link,
		eeprom:         reader,
		log:            logrus.New(),
		unioGPIO:       unioGPIO,
		unioBitrateBps: unioBitrateBps,
		binaryMode:     binaryMode,
	}
}

// SetLogger replaces the Dispatcher's logger, used to route command
// errors through the process-wide logger built by pkg/logging.
func (d *Dispatcher) SetLogger(log *logrus.Logger) {
	d.log = log
}

// Handle dispatches one command line, matching handle_cdc_command's
// prefix-match order exactly: EEPROM.DUMP, EEPROM.PARSE, INFO.DEV, else
// ERR UNKNOWN_CMD.
func (d *Dispatcher) Handle(line string) {
	switch {
	case strings.HasPrefix(line, "EEPROM.DUMP"):
		addr, length := parseDumpArgs(line[len("EEPROM.DUMP"):])
		d.handleEepromDump(addr, length)
	case strings.HasPrefix(line, "EEPROM.PARSE"):
		d.link.WriteLine("ERR UNSUPPORTED\n")
		d.link.WriteLine("END\n")
	case strings.HasPrefix(line, "INFO.DEV"):
		d.handleInfoDev()
	default:
		d.log.WithError(hosterrors.UnknownCommandError(line)).Warn("unrecognized host command")
		d.link.WriteLine("ERR UNKNOWN_CMD\n")
		d.link.WriteLine("END\n")
	}
}

// parseDumpArgs parses the optional "[addr [len]]" suffix of
// EEPROM.DUMP, defaulting addr to 0 and length to a full record when
// either is missing or unparsable, matching handle_cdc_command's sscanf
// fallback.
func parseDumpArgs(rest string) (addr uint16, length int) {
	var a, l uint32
	n, _ := fmt.Sscanf(strings.TrimSpace(rest), "%d %d", &a, &l)
	switch n {
	case 2:
		return uint16(a & 0xFFFF), int(l)
	case 1:
		return uint16(a & 0xFFFF), eeprom.MaxRecordBytes
	default:
		return 0, eeprom.MaxRecordBytes
	}
}

func (d *Dispatcher) handleEepromDump(addr uint16, length int) {
	if addr >= eeprom.AddressSpace {
		d.lastValid = false
		d.link.WriteLine("ERR BAD_ADDR\n")
		d.link.WriteLine("END\n")
		return
	}
	if length <= 0 || length > eeprom.MaxRecordBytes {
		length = eeprom.MaxRecordBytes
	}
	if remaining := eeprom.AddressSpace - int(addr); length > remaining {
		length = remaining
	}

	record, err := d.eeprom.Read(addr, length)
	if err == eeprom.ErrNoDevice {
		d.lastValid = false
		d.log.WithError(hosterrors.EEPROMNoDeviceError()).Warn("eeprom dump failed")
		d.link.WriteLine("ERR UNIO_NO_DEVICE\n")
		d.link.WriteLine("END\n")
		return
	}
	if err != nil {
		d.lastValid = false
		d.log.WithError(hosterrors.EEPROMIOError(err.Error())).Warn("eeprom dump failed")
		d.link.WriteLine("ERR EEPROM_IO\n")
		d.link.WriteLine("END\n")
		return
	}

	d.lastValid = true
	d.lastRecord = record

	d.link.WriteLine(fmt.Sprintf("OK DEV=0x%02X START=0x%04X LEN=%d\n",
		record.DeviceAddress, record.StartAddr, len(record.Data)))
	d.sendHexBlock(record.Data)
	d.link.WriteLine("END\n")
}

// sendHexBlock writes data as uppercase hex, 32 bytes (64 hex chars) per
// line, matching send_hex_block.
func (d *Dispatcher) sendHexBlock(data []byte) {
	var sb strings.Builder
	for i, b := range data {
		fmt.Fprintf(&sb, "%02X", b)
		if (i+1)%32 == 0 {
			d.link.WriteLine(sb.String())
			d.link.WriteLine("\n")
			sb.Reset()
		}
	}
	if sb.Len() > 0 {
		d.link.WriteLine(sb.String())
		d.link.WriteLine("\n")
	}
}

func (d *Dispatcher) handleInfoDev() {
	modeStr := "csv"
	if d.binaryMode {
		modeStr = "binary"
	}
	line := fmt.Sprintf("OK FW=terpsd VER=uni_o gpio=%d bitrate=%d mode=%s",
		d.unioGPIO, d.unioBitrateBps, modeStr)
	if d.lastValid {
		line += fmt.Sprintf(" last_dev=0x%02X last_len=%d", d.lastRecord.DeviceAddress, len(d.lastRecord.Data))
	}
	d.link.WriteLine(line + "\n")
	d.link.WriteLine("END\n")
}
