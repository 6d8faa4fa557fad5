package layer

// EID is an endpoint identifier: a 16-byte address plus a 16-bit port,
// matching decom::eid in layer.h. It is a plain comparable struct, so it
// works directly as a map key — Go array equality stands in for the
// original's hand-rolled operator==.
type EID struct {
	Addr [16]byte
	Port uint16
}

// Any is the zero-value sentinel eid_any: "any address, any port", used
// when a caller doesn't care which endpoint a frame targets.
var Any EID

// IsAny reports whether e is the zero-value sentinel.
func (e EID) IsAny() bool { return e == Any }

// NewPortEID builds an EID with only a port set, mirroring eid's
// port-only ctor.
func NewPortEID(port uint16) EID { return EID{Port: port} }

// Less provides a total order over EIDs (port first, then address, most
// significant byte first) for callers that need to keep endpoints sorted,
// e.g. diagnostics listing connected peers.
func (e EID) Less(other EID) bool {
	if e.Port != other.Port {
		return e.Port < other.Port
	}
	for i := range e.Addr {
		if e.Addr[i] != other.Addr[i] {
			return e.Addr[i] < other.Addr[i]
		}
	}
	return false
}
