//go:build linux || darwin

package fifo

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sys/unix"

	"github.com/ardnew/midilink/pkg"
)

// Message types of the pipe protocol.
const (
	msgSetup = 0x01 // SETUP from host: [address, setup(8), data...]
	msgData  = 0x02 // DATA in either direction
	msgAck   = 0x03 // status stage completed
	msgStall = 0x05 // request rejected
	msgReset = 0x12 // port reset
)

// headerSize is the size of [type, len_lo, len_hi].
const headerSize = 3

// MaxPayload is the largest message payload.
const MaxPayload = 512

// pollSlice bounds a single wait so cancellation is noticed.
const pollSlice = 50 * time.Millisecond

// pipe is one named FIFO opened read-write and non-blocking, so neither
// side waits for its peer to open it. Messages are far smaller than
// PIPE_BUF, which makes every write atomic: a message is either entirely
// in the pipe or not there at all.
type pipe struct {
	name    string
	fd      int
	scratch [headerSize + MaxPayload]byte
}

func makePipe(dir, name string) error {
	path := filepath.Join(dir, name)
	_ = os.Remove(path)
	if err := unix.Mkfifo(path, 0o666); err != nil {
		return fmt.Errorf("mkfifo %s: %w", name, err)
	}
	return nil
}

func openPipe(dir, name string) (*pipe, error) {
	fd, err := unix.Open(filepath.Join(dir, name), unix.O_RDWR|unix.O_NONBLOCK|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	return &pipe{name: name, fd: fd}, nil
}

func (p *pipe) close() error {
	if p == nil || p.fd < 0 {
		return nil
	}
	err := unix.Close(p.fd)
	p.fd = -1
	return err
}

// pending returns the number of unread bytes in the pipe.
func (p *pipe) pending() (int, error) {
	n, err := unix.IoctlGetInt(p.fd, fionread)
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", p.name, err)
	}
	return n, nil
}

// send writes one message. It returns pkg.ErrBusy if the pipe is full.
func (p *pipe) send(typ byte, payload []byte) error {
	if len(payload) > MaxPayload {
		return fmt.Errorf("%s: payload of %d bytes: %w", p.name, len(payload), pkg.ErrInvalidParameter)
	}
	p.scratch[0] = typ
	binary.LittleEndian.PutUint16(p.scratch[1:headerSize], uint16(len(payload)))
	n := headerSize + copy(p.scratch[headerSize:], payload)

	_, err := unix.Write(p.fd, p.scratch[:n])
	if errors.Is(err, unix.EAGAIN) {
		return pkg.ErrBusy
	}
	if err != nil {
		return fmt.Errorf("write %s: %w", p.name, err)
	}
	return nil
}

// recv reads one message if one is waiting. The payload references
// internal storage and is valid until the next call.
func (p *pipe) recv() (typ byte, payload []byte, ok bool, err error) {
	header := p.scratch[:headerSize]
	n, err := unix.Read(p.fd, header)
	if errors.Is(err, unix.EAGAIN) {
		return 0, nil, false, nil
	}
	if err != nil {
		return 0, nil, false, fmt.Errorf("read %s: %w", p.name, err)
	}
	if n != headerSize {
		return 0, nil, false, fmt.Errorf("read %s: short header: %w", p.name, pkg.ErrInvalidState)
	}

	length := int(binary.LittleEndian.Uint16(header[1:]))
	if length > MaxPayload {
		return 0, nil, false, fmt.Errorf("read %s: payload of %d bytes: %w", p.name, length, pkg.ErrBufferTooSmall)
	}
	payload = p.scratch[headerSize : headerSize+length]
	if length > 0 {
		n, err = unix.Read(p.fd, payload)
		if err != nil {
			return 0, nil, false, fmt.Errorf("read %s: %w", p.name, err)
		}
		if n != length {
			return 0, nil, false, fmt.Errorf("read %s: short payload: %w", p.name, pkg.ErrInvalidState)
		}
	}
	return header[0], payload, true, nil
}

// await blocks until a message is waiting, ctx ends, or timeout elapses.
func (p *pipe) await(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	fds := []unix.PollFd{{Fd: int32(p.fd), Events: unix.POLLIN}}
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return fmt.Errorf("%s: %w", p.name, pkg.ErrTimeout)
		}
		n, err := unix.Poll(fds, int(min(remaining, pollSlice)/time.Millisecond)+1)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return fmt.Errorf("poll %s: %w", p.name, err)
		}
		if n > 0 && fds[0].Revents&unix.POLLIN != 0 {
			return nil
		}
	}
}

// drained blocks until the peer has read everything in the pipe.
func (p *pipe) drained(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for {
		n, err := p.pending()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%s: %w", p.name, pkg.ErrTimeout)
		}
		time.Sleep(time.Millisecond)
	}
}
