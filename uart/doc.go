// Package uart provides the serial side of the bridge.
//
// [Serial] drives a real port through go.bug.st/serial with 8N1 framing,
// normally at [MIDIBaud]. [Memory] is an in-process line for tests and
// simulation; [NewLoopback] joins its output to its input. Both implement
// the non-blocking byte interface the bridge polls.
package uart
