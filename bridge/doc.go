// Package bridge moves MIDI between a USB-MIDI endpoint and a serial MIDI
// line.
//
// The host side speaks 4-byte USB-MIDI event packets ([Frame]). The serial
// side carries the same frames one byte at a time. A [Bridge] owns every
// piece of state that connects the two and drives both directions from a
// single cooperative loop.
//
// # Architecture
//
//	host ──OUT──▶ USB.Poll ──▶ Demux ──▶ Ring ──▶ UART.WriteByte ──▶ serial
//	host ◀──IN─── USB.SendInterrupt ◀── FrameBuffer ◀── Assembler ◀── UART.ReadByte
//
//   - [Demux] splits each host packet into frames and pushes them into the [Ring]
//   - [Ring] is a power-of-two byte queue that overwrites its oldest byte when full
//   - [Assembler] groups serial bytes into frames
//   - [FrameBuffer] holds the most recent complete frame for the interrupt IN endpoint
//
// # Scheduling
//
// [Bridge.Step] runs one iteration of the loop:
//
//  1. Kick the watchdog
//  2. Poll the USB stack (which may call [Demux.Write] for each OUT packet)
//  3. Move one byte from the ring to the UART when the transmitter is ready
//  4. Re-enable USB requests once the ring drains below the low-water mark
//  5. Move one received UART byte into the assembler
//  6. Send a pending frame when the interrupt IN endpoint is ready
//
// No step blocks. Adapters with blocking I/O hide it behind goroutines and
// expose the non-blocking check-and-act methods of [USB] and [UART].
// [Bridge.Run] repeats Step until its context is cancelled.
//
// # Overflow
//
// Both directions prefer fresh data. A full ring drops its oldest byte and
// a staged frame that was never sent is replaced by the next one. Neither
// case is an error; both are counted in [Stats].
//
// # Usage
//
//	b, err := bridge.New(bridge.DefaultConfig(), usbPort, serialPort)
//	if err != nil {
//	    return err
//	}
//	b.SetWatchdog(watchdog.NewSoftware(time.Second, reset))
//	return b.Run(ctx)
package bridge
