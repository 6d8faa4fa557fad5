// Package isotp implements ISO 15765-2 (CAN-TP): segmentation and
// reassembly of payloads larger than one CAN frame, with flow control
// pacing the sender. Grounded on the original decom library's
// prot/automotive/prot_iso15765.h, adapted onto the teacher repo's
// (github.com/LoveWonYoung/isotp) Go idioms for configuration
// (tp/config.go), addressing (tp/address.go), and typed errors
// (tp/errors.go).
package isotp

import (
	"fmt"
	"time"
)

// Config holds the tunables of the sender/receiver state machines. All
// four timeouts default to 1000ms, matching prot_iso15765.h's N_As/N_Ar/
// N_Bs/N_Cr constants.
type Config struct {
	// TimeoutNAs bounds how long the sender waits for the lower layer to
	// report tx_done for each consecutive frame it transmits.
	TimeoutNAs time.Duration
	// TimeoutNBs bounds how long the sender waits for a flow control frame
	// after sending a First Frame.
	TimeoutNBs time.Duration
	// TimeoutNAr is carried alongside the other three timers, but the
	// receiver does not wait for tx_done after sending a flow control frame,
	// so no code path reads it.
	TimeoutNAr time.Duration
	// TimeoutNCr bounds how long the receiver waits for the next
	// consecutive frame once reassembly has started.
	TimeoutNCr time.Duration

	// BlockSize is the block size this side offers in its flow control
	// frames: the number of consecutive frames the remote sender may
	// transmit before it must wait for another flow control frame, and so
	// the interval at which this side's receiver emits a new CTS. 0 means
	// unlimited (send everything after one CTS). This side's own sender
	// paces itself by the block size in the remote's flow control frames.
	BlockSize int
	// STmin is the minimum separation time in milliseconds the sender
	// waits between consecutive frames, as instructed by the receiver's
	// flow control frame (this is the value this side offers to a remote
	// sender; values 0-127 are milliseconds, 241-249 map to 100-900us per
	// ISO 15765-2 — this port only emits the 0-127ms range).
	STmin int
	// MaxWaitFrames bounds how many consecutive FC "wait" frames the
	// sender tolerates before giving up, matching WFTMax.
	MaxWaitFrames int
	// MaxPayload caps a First Frame's declared length, matching the
	// classic (non-FD) 4095-byte ISO-TP length field.
	MaxPayload int

	// UseZeroPadding pads every outgoing frame to 8 bytes with trailing
	// zeroes when set. Off by default, matching use_zero_padding_'s
	// default of false: frames are trimmed to only the bytes they use.
	UseZeroPadding bool
}

// DefaultConfig returns ISO 15765-2's recommended defaults.
func DefaultConfig() Config {
	return Config{
		TimeoutNAs:    1000 * time.Millisecond,
		TimeoutNBs:    1000 * time.Millisecond,
		TimeoutNAr:    1000 * time.Millisecond,
		TimeoutNCr:    1000 * time.Millisecond,
		BlockSize:     0,
		STmin:         0,
		MaxWaitFrames: 0,
		MaxPayload:    4095,
	}
}

// Validate checks the configuration for internally-consistent values.
func (c *Config) Validate() error {
	if c.BlockSize < 0 || c.BlockSize > 255 {
		return fmt.Errorf("isotp: block size %d out of range [0,255]", c.BlockSize)
	}
	if c.STmin < 0 || c.STmin > 127 {
		return fmt.Errorf("isotp: STmin %d out of range [0,127]ms", c.STmin)
	}
	if c.MaxWaitFrames < 0 {
		return fmt.Errorf("isotp: MaxWaitFrames must not be negative")
	}
	if c.MaxPayload <= 0 || c.MaxPayload > 4095 {
		return fmt.Errorf("isotp: MaxPayload %d out of range (0,4095]", c.MaxPayload)
	}
	return nil
}

// Address configures the optional one-byte extended addressing mode
// spec.md names: an address extension byte prepended to every frame,
// trimmed from the teacher's tp/address.go which also supports 29-bit
// fixed/mixed CAN-FD addressing that spec.md's CAN-TP section does not
// call for (see DESIGN.md).
type Address struct {
	// Extended enables one-byte address-extension framing. When false,
	// frames use normal addressing (no extension byte, 7 payload bytes
	// per SF).
	Extended bool
	// Local is this node's address extension byte, prefixed to every
	// frame this stack transmits.
	Local byte
	// Remote is the address extension byte this stack expects on frames
	// it receives; a mismatch is silently discarded, not an error,
	// matching the original's source-address filtering.
	Remote byte
}
