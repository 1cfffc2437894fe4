package adc

import (
	"fmt"
	"sync"
	"time"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"

	"terpsd/pkg/protocol"
)

const (
	cmdReset   = 0x06
	cmdStart   = 0x08
	cmdRdata   = 0x10
	cmdWreg    = 0x40
	cmdPwrdown = 0x02
	cmdWakeup  = 0x00
)

// SPI drives a real ADS1220 over a periph.io SPI port with a DRDY GPIO
// line, grounded on ads1220.cpp's register layout and conversion
// sequencing. It fails open (ok=false) rather than panicking when no bus
// is wired, so a repo built without hardware attached still runs.
type SPI struct {
	port spi.PortCloser
	drdy gpio.PinIO

	mu   sync.Mutex
	conn spi.Conn
	cfg  Config
	avg  averager
}

// NewSPI wraps an already-opened SPI port and DRDY pin. Passing a nil
// port yields a driver whose ReadMicrovolts always reports ok=false.
func NewSPI(port spi.PortCloser, drdy gpio.PinIO) *SPI {
	return &SPI{port: port, drdy: drdy}
}

func gainToBits(gain uint8) byte {
	switch gain {
	case 1:
		return 0x00
	case 2:
		return 0x01
	case 4:
		return 0x02
	case 8:
		return 0x03
	case 16:
		return 0x04
	case 32:
		return 0x05
	case 64:
		return 0x06
	case 128:
		return 0x07
	default:
		return 0x04
	}
}

func rateToBits(rate uint16) byte {
	switch {
	case rate <= 20:
		return 0x00
	case rate <= 45:
		return 0x01
	case rate <= 90:
		return 0x02
	case rate <= 175:
		return 0x03
	case rate <= 330:
		return 0x04
	case rate <= 600:
		return 0x05
	case rate <= 1000:
		return 0x06
	default:
		return 0x07
	}
}

// Init implements Driver.
func (s *SPI) Init(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.avg = averager{window: cfg.AverageWindow}

	if s.port == nil {
		return nil
	}
	conn, err := s.port.Connect(physic.MegaHertz, spi.Mode1, 8)
	if err != nil {
		return fmt.Errorf("adc: spi connect: %w", err)
	}
	s.conn = conn

	if err := s.writeCommand(cmdReset); err != nil {
		return err
	}
	time.Sleep(2 * time.Millisecond)
	if err := s.applyRegistersLocked(); err != nil {
		return err
	}
	return s.writeCommand(cmdStart)
}

// ApplyConfig implements Driver.
func (s *SPI) ApplyConfig(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
	s.avg = averager{window: cfg.AverageWindow}
	if s.conn != nil {
		_ = s.applyRegistersLocked()
	}
}

func (s *SPI) writeCommand(cmd byte) error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Tx([]byte{cmd}, nil)
}

func (s *SPI) applyRegistersLocked() error {
	reg0 := gainToBits(s.cfg.Gain) << 1
	if s.cfg.Gain <= 1 {
		reg0 |= 0x01
	}
	reg1 := byte(0x04) | (rateToBits(s.cfg.RateSPS) << 5)
	reg2 := byte(0x10)
	if s.cfg.MainsReject {
		reg2 |= 0x08
	}
	reg3 := byte(0x00)

	cmd := byte(cmdWreg | (0 << 2) | (4-1)&0x03)
	return s.conn.Tx([]byte{cmd, reg0, reg1, reg2, reg3}, nil)
}

func (s *SPI) readRawCode() (int32, error) {
	tx := []byte{cmdRdata, 0xFF, 0xFF, 0xFF}
	rx := make([]byte, len(tx))
	if err := s.conn.Tx(tx, rx); err != nil {
		return 0, err
	}
	raw := int32(rx[1])<<16 | int32(rx[2])<<8 | int32(rx[3])
	if raw&0x800000 != 0 {
		raw |= -1 << 24 // sign-extend from 24 bits
	}
	return raw, nil
}

// ReadMicrovolts implements Driver, polling DRDY until it asserts low or
// timeoutMs elapses.
func (s *SPI) ReadMicrovolts(timeoutMs uint32) (int32, uint8, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil || s.drdy == nil {
		return 0, 0, false
	}

	if timeoutMs == 0 {
		timeoutMs = 200
	}
	deadline := time.Now().Add(time.Duration(timeoutMs) * time.Millisecond)
	for s.drdy.Read() != gpio.Low {
		if time.Now().After(deadline) {
			return 0, protocol.FlagADCTimeout, false
		}
		time.Sleep(50 * time.Microsecond)
	}

	raw, err := s.readRawCode()
	if err != nil {
		return 0, protocol.FlagADCTimeout, false
	}

	flags := saturationFlags(raw)
	uv := scaleRawCode(raw, s.cfg.Gain)
	return s.avg.apply(uv), flags, true
}

// Sleep implements Driver.
func (s *SPI) Sleep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.writeCommand(cmdPwrdown)
}

// Wake implements Driver.
func (s *SPI) Wake() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.writeCommand(cmdWakeup)
	time.Sleep(50 * time.Microsecond)
	_ = s.writeCommand(cmdStart)
}
