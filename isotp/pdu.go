package isotp

// frameKind is the N_PCI type carried in the upper nibble of a frame's
// first (non-addressing) byte.
type frameKind int

const (
	kindSingle frameKind = iota
	kindFirst
	kindConsecutive
	kindFlowControl
)

// flowStatus is the FS sub-field of a flow control frame.
type flowStatus int

const (
	fsContinueToSend flowStatus = 0
	fsWait           flowStatus = 1
	fsOverflow       flowStatus = 2
)

const (
	pciSF = 0x0
	pciFF = 0x1
	pciCF = 0x2
	pciFC = 0x3
)

// pdu is a decoded CAN-TP frame.
type pdu struct {
	kind frameKind

	// SF/FF
	length int // total payload length (SF: <=7/6; FF: up to MaxPayload)
	data   []byte

	// CF
	sn int

	// FC
	fs    flowStatus
	bs    int
	stMin int
}

// addrOffset returns how many leading bytes of a raw frame are consumed by
// address-extension framing before the N_PCI byte.
func addrOffset(addr Address) int {
	if addr.Extended {
		return 1
	}
	return 0
}

// maxSFPayload returns the largest payload a Single Frame can carry given
// an 8-byte CAN frame and the addressing mode in use.
func maxSFPayload(addr Address) int {
	return 7 - addrOffset(addr)
}

// maxFFFirstPayload returns how many payload bytes a First Frame carries
// in its own frame (the rest follows in consecutive frames).
func maxFFFirstPayload(addr Address) int {
	return 6 - addrOffset(addr)
}

// maxCFPayload returns how many payload bytes one Consecutive Frame
// carries.
func maxCFPayload(addr Address) int {
	return 7 - addrOffset(addr)
}

// frameBuf allocates a frame's backing array: 8 bytes when pad is set
// (use_zero_padding_ on), otherwise trimmed to exactly used bytes, matching
// prot_iso15765.h's use_zero_padding_ default of false.
func frameBuf(pad bool, used int) []byte {
	if pad {
		return make([]byte, 8)
	}
	return make([]byte, used)
}

// encodeSF builds a Single Frame carrying payload, zero-padded to 8 bytes
// only when pad is set.
func encodeSF(addr Address, payload []byte, pad bool) []byte {
	off := addrOffset(addr)
	frame := frameBuf(pad, off+1+len(payload))
	if off == 1 {
		frame[0] = addr.Local
	}
	frame[off] = byte(pciSF<<4) | byte(len(payload))
	copy(frame[off+1:], payload)
	return frame
}

// encodeFF builds a First Frame declaring totalLength and carrying the
// first chunk of payload, zero-padded to 8 bytes only when pad is set.
func encodeFF(addr Address, totalLength int, firstChunk []byte, pad bool) []byte {
	off := addrOffset(addr)
	frame := frameBuf(pad, off+2+len(firstChunk))
	if off == 1 {
		frame[0] = addr.Local
	}
	frame[off] = byte(pciFF<<4) | byte((totalLength>>8)&0x0F)
	frame[off+1] = byte(totalLength & 0xFF)
	copy(frame[off+2:], firstChunk)
	return frame
}

// encodeCF builds a Consecutive Frame with the given sequence number
// (0-15, wrapping) and chunk, zero-padded to 8 bytes only when pad is set.
func encodeCF(addr Address, sn int, chunk []byte, pad bool) []byte {
	off := addrOffset(addr)
	frame := frameBuf(pad, off+1+len(chunk))
	if off == 1 {
		frame[0] = addr.Local
	}
	frame[off] = byte(pciCF<<4) | byte(sn&0x0F)
	copy(frame[off+1:], chunk)
	return frame
}

// encodeFC builds a Flow Control frame, zero-padded to 8 bytes only when
// pad is set.
func encodeFC(addr Address, fs flowStatus, bs, stMin int, pad bool) []byte {
	off := addrOffset(addr)
	frame := frameBuf(pad, off+3)
	if off == 1 {
		frame[0] = addr.Local
	}
	frame[off] = byte(pciFC<<4) | byte(fs)
	frame[off+1] = byte(bs)
	frame[off+2] = byte(stMin)
	return frame
}

// decodePDU parses a raw CAN frame under the given addressing mode.
// Returns ok=false on anything malformed (too short, bad PCI nibble,
// declared length inconsistent with the frame) or discard=true when
// extended addressing is in use and the frame's extension byte does not
// match addr.Remote — the original's source-address mismatch is a silent
// discard, not an error, so callers must only surface rx_error when ok is
// false AND discard is false.
func decodePDU(addr Address, raw []byte) (p pdu, ok bool, discard bool) {
	off := addrOffset(addr)
	if len(raw) < off+1 {
		return pdu{}, false, false
	}
	if off == 1 && raw[0] != addr.Remote {
		return pdu{}, false, true
	}
	b := raw[off:]
	kindNibble := b[0] >> 4

	switch kindNibble {
	case pciSF:
		n := int(b[0] & 0x0F)
		if n == 0 || len(b) < 1+n {
			return pdu{}, false, false
		}
		return pdu{kind: kindSingle, length: n, data: append([]byte{}, b[1:1+n]...)}, true, false

	case pciFF:
		if len(b) < 2 {
			return pdu{}, false, false
		}
		length := (int(b[0]&0x0F) << 8) | int(b[1])
		if length < maxSFPayload(addr)+1 {
			// a length this small should have been a Single Frame.
			return pdu{}, false, false
		}
		chunk := b[2:]
		return pdu{kind: kindFirst, length: length, data: append([]byte{}, chunk...)}, true, false

	case pciCF:
		sn := int(b[0] & 0x0F)
		return pdu{kind: kindConsecutive, sn: sn, data: append([]byte{}, b[1:]...)}, true, false

	case pciFC:
		if len(b) < 3 {
			return pdu{}, false, false
		}
		return pdu{
			kind:  kindFlowControl,
			fs:    flowStatus(b[0] & 0x0F),
			bs:    int(b[1]),
			stMin: int(b[2]),
		}, true, false

	default:
		return pdu{}, false, false
	}
}
