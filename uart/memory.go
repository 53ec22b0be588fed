package uart

import (
	"time"

	"github.com/ardnew/midilink/bridge"
	"github.com/ardnew/midilink/pkg"
	"github.com/ardnew/midilink/pkg/syncutil"
)

// Memory is an in-process UART. Bytes written by the remote side with
// Inject are received, and transmitted bytes are collected for Transmitted.
// In loopback mode transmitted bytes are received instead, like a cable
// joining TX to RX.
type Memory struct {
	mutex    syncutil.Mutex
	cfg      Config
	rx       []byte
	tx       []byte
	loopback bool
	paced    bool
	nextTx   time.Time
	overruns uint64
	closed   bool
	now      func() time.Time
}

// NewMemory creates an in-process UART with the buffer sizes of cfg.
func NewMemory(cfg Config) *Memory {
	if cfg.RxBuffer <= 0 {
		cfg.RxBuffer = DefaultBufferSize
	}
	if cfg.TxBuffer <= 0 {
		cfg.TxBuffer = DefaultBufferSize
	}
	return &Memory{cfg: cfg, now: time.Now}
}

// NewLoopback creates an in-process UART whose output is its input.
func NewLoopback(cfg Config) *Memory {
	m := NewMemory(cfg)
	m.loopback = true
	return m
}

// SetPaced limits transmission to one byte per character time at cfg.Baud.
func (m *Memory) SetPaced(paced bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.paced = paced && m.cfg.Baud > 0
}

// Loopback reports whether transmitted bytes are received.
func (m *Memory) Loopback() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.loopback
}

// Inject delivers data as if the remote side had sent it. Bytes that do not
// fit the receive buffer are counted as overruns and dropped.
func (m *Memory) Inject(data ...byte) int {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.receive(data)
}

func (m *Memory) receive(data []byte) int {
	n := min(len(data), m.cfg.RxBuffer-len(m.rx))
	if n < 0 {
		n = 0
	}
	m.rx = append(m.rx, data[:n]...)
	if dropped := len(data) - n; dropped > 0 {
		m.overruns += uint64(dropped)
		pkg.LogDebug(pkg.ComponentUART, "receive overrun", "dropped", dropped)
	}
	return n
}

// Transmitted removes and returns every byte transmitted so far.
func (m *Memory) Transmitted() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	out := m.tx
	m.tx = nil
	return out
}

// Overruns returns the number of received bytes dropped.
func (m *Memory) Overruns() uint64 {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.overruns
}

// ByteReceived reports whether a received byte is waiting.
func (m *Memory) ByteReceived() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return len(m.rx) > 0
}

// ReadByte returns the oldest received byte.
func (m *Memory) ReadByte() (byte, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if len(m.rx) == 0 {
		if m.closed {
			return 0, pkg.ErrClosed
		}
		return 0, pkg.ErrNoData
	}
	c := m.rx[0]
	m.rx = m.rx[1:]
	return c, nil
}

// TransmitReady reports whether WriteByte would accept a byte.
func (m *Memory) TransmitReady() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.transmitReady()
}

func (m *Memory) transmitReady() bool {
	if m.closed {
		return false
	}
	if m.paced && m.now().Before(m.nextTx) {
		return false
	}
	if m.loopback {
		return len(m.rx) < m.cfg.RxBuffer
	}
	return len(m.tx) < m.cfg.TxBuffer
}

// WriteByte transmits c.
func (m *Memory) WriteByte(c byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	if m.closed {
		return pkg.ErrClosed
	}
	if !m.transmitReady() {
		return pkg.ErrBusy
	}
	if m.paced {
		m.nextTx = m.now().Add(m.cfg.ByteTime())
	}
	if m.loopback {
		m.receive([]byte{c})
		return nil
	}
	m.tx = append(m.tx, c)
	return nil
}

// Close makes further writes fail. Bytes already received remain readable.
func (m *Memory) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}

var _ bridge.UART = (*Memory)(nil)
