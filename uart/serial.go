package uart

import (
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"go.bug.st/serial"

	"github.com/ardnew/midilink/bridge"
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// Serial is a UART backed by an operating system serial port.
//
// A reader goroutine moves received bytes into a bounded queue and a writer
// goroutine drains the transmit queue, so none of the [bridge.UART] methods
// block.
type Serial struct {
	name string
	cfg  Config
	port serial.Port

	rx chan byte
	tx chan byte

	overruns atomic.Uint64
	closed   atomic.Bool
	done     chan struct{}
	wg       sync.WaitGroup

	mutex syncutil.Mutex
	err   error
}

// Open opens the named port with 8N1 framing at cfg.Baud.
func Open(name string, cfg Config) (*Serial, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	port, err := serial.Open(name, &serial.Mode{
		BaudRate: cfg.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", name, err)
	}
	if err := port.SetReadTimeout(cfg.ReadTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", name, err)
	}
	if err := port.ResetInputBuffer(); err != nil {
		pkg.LogWarn(pkg.ComponentUART, "cannot reset input buffer", "port", name, "error", err)
	}

	s := newSerial(name, port, cfg)
	pkg.LogInfo(pkg.ComponentUART, "serial port opened", "port", name, "baud", cfg.Baud)
	return s, nil
}

func newSerial(name string, port serial.Port, cfg Config) *Serial {
	s := &Serial{
		name: name,
		cfg:  cfg,
		port: port,
		rx:   make(chan byte, cfg.RxBuffer),
		tx:   make(chan byte, cfg.TxBuffer),
		done: make(chan struct{}),
	}
	s.wg.Add(2)
	go s.readLoop()
	go s.writeLoop()
	return s
}

// Name returns the port name.
func (s *Serial) Name() string {
	return s.name
}

// Config returns the line configuration.
func (s *Serial) Config() Config {
	return s.cfg
}

// ByteReceived reports whether a received byte is waiting.
func (s *Serial) ByteReceived() bool {
	return len(s.rx) > 0
}

// ReadByte returns the oldest received byte. It returns [pkg.ErrNoData]
// when nothing is waiting, or the error that stopped the reader once the
// queue is empty.
func (s *Serial) ReadByte() (byte, error) {
	select {
	case c := <-s.rx:
		return c, nil
	default:
	}
	if err := s.Err(); err != nil {
		return 0, err
	}
	if s.closed.Load() {
		return 0, pkg.ErrClosed
	}
	return 0, pkg.ErrNoData
}

// TransmitReady reports whether WriteByte can queue another byte.
func (s *Serial) TransmitReady() bool {
	return !s.closed.Load() && len(s.tx) < cap(s.tx)
}

// WriteByte queues c for transmission.
func (s *Serial) WriteByte(c byte) error {
	if s.closed.Load() {
		return pkg.ErrClosed
	}
	if err := s.Err(); err != nil {
		return err
	}
	select {
	case s.tx <- c:
		return nil
	default:
		return pkg.ErrBusy
	}
}

// Overruns returns the number of received bytes dropped because the
// receive queue was full.
func (s *Serial) Overruns() uint64 {
	return s.overruns.Load()
}

// Err returns the error that stopped the reader or writer, if any.
func (s *Serial) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.err
}

func (s *Serial) fail(op string, err error) {
	s.mutex.Lock()
	if s.err == nil {
		s.err = fmt.Errorf("serial %s %s: %w", s.name, op, err)
	}
	s.mutex.Unlock()
	pkg.LogWarn(pkg.ComponentUART, "serial port failed", "port", s.name, "op", op, "error", err)
}

// Close stops the reader and writer and closes the port. Bytes still
// queued for transmission are written first.
func (s *Serial) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	close(s.done)

	// The reader returns within one read timeout.
	s.wg.Wait()
	err := s.port.Close()
	pkg.LogInfo(pkg.ComponentUART, "serial port closed", "port", s.name,
		"overruns", s.overruns.Load())
	if err != nil {
		return fmt.Errorf("close serial port %s: %w", s.name, err)
	}
	return nil
}

func (s *Serial) readLoop() {
	defer s.wg.Done()

	var buf [DefaultBufferSize]byte
	for {
		n, err := s.port.Read(buf[:])
		if s.closed.Load() {
			return
		}
		if err != nil {
			s.fail("read", err)
			return
		}
		for _, c := range buf[:n] {
			select {
			case s.rx <- c:
			default:
				s.overruns.Add(1)
			}
		}
		if n > 0 {
			pkg.LogDebug(pkg.ComponentUART, "received", "port", s.name, "bytes", n)
		}
	}
}

func (s *Serial) writeLoop() {
	defer s.wg.Done()

	buf := make([]byte, 0, cap(s.tx))
	for {
		select {
		case c := <-s.tx:
			buf = append(buf[:0], c)
			buf = s.collect(buf)
			if err := s.writeAll(buf); err != nil {
				if !s.closed.Load() {
					s.fail("write", err)
				}
				return
			}
		case <-s.done:
			if buf = s.collect(buf[:0]); len(buf) > 0 {
				if err := s.writeAll(buf); err != nil {
					pkg.LogWarn(pkg.ComponentUART, "dropped queued bytes on close",
						"port", s.name, "bytes", len(buf), "error", err)
				}
			}
			return
		}
	}
}

// writeAll writes buf to the port, retrying after short writes.
func (s *Serial) writeAll(buf []byte) error {
	for len(buf) > 0 {
		n, err := s.port.Write(buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return io.ErrShortWrite
		}
		buf = buf[n:]
	}
	return nil
}

// collect appends every byte already queued without blocking.
func (s *Serial) collect(buf []byte) []byte {
	for len(buf) < cap(buf) {
		select {
		case c := <-s.tx:
			buf = append(buf, c)
		default:
			return buf
		}
	}
	return buf
}

var _ bridge.UART = (*Serial)(nil)
