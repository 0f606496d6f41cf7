package packet

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Packet kinds, one byte on the wire.
const (
	KindHello uint8 = 0x01
	KindAck   uint8 = 0x02
	KindData  uint8 = 0x03
)

const (
	// HeaderSize is the wire-exact header length. Every node must agree
	// on it, so it is fixed here and asserted in tests rather than
	// derived from any in-memory layout.
	HeaderSize = 22

	// BroadcastID means "next hop undetermined / everyone hears".
	BroadcastID uint32 = 0xFFFFFFFF

	// TTL is a 5-bit field.
	MaxTTL uint8 = 31

	DefaultDataTTL    uint8 = 15
	DefaultControlTTL uint8 = 1
)

// Flag byte layout: bits 0-4 ttl, bit 5 intNeighbour, bit 6 visited,
// bit 7 myInternet.
const (
	ttlMask          = 0x1F
	flagIntNeighbour = 1 << 5
	flagVisited      = 1 << 6
	flagMyInternet   = 1 << 7
)

var ErrTruncated = errors.New("buffer too short for THOR header")

// Header is the fixed 22-byte THOR packet header.
type Header struct {
	Type          uint8
	TTL           uint8 // remaining hop budget, 0-31
	IntNeighbour  bool  // sender's best-known neighbour has internet
	Visited       bool  // path-lock flag
	MyInternet    bool  // sender itself has direct internet
	DestinationID uint32
	SenderID      uint32
	OriginID      uint32
	NextHopID     uint32
	Sequence      uint32
}

// Packet is a header plus an arbitrary payload. Only DATA packets carry one.
type Packet struct {
	Header  Header
	Payload []byte
}

// packFlags folds ttl and the three reachability/lock bits into one byte
// with explicit shifts; the byte must be identical on every node.
func packFlags(ttl uint8, intNeighbour, visited, myInternet bool) uint8 {
	b := ttl & ttlMask
	if intNeighbour {
		b |= flagIntNeighbour
	}
	if visited {
		b |= flagVisited
	}
	if myInternet {
		b |= flagMyInternet
	}
	return b
}

func unpackFlags(b uint8) (ttl uint8, intNeighbour, visited, myInternet bool) {
	return b & ttlMask, b&flagIntNeighbour != 0, b&flagVisited != 0, b&flagMyInternet != 0
}

// Serialise writes the header into exactly HeaderSize bytes, little-endian.
func (h *Header) Serialise() []byte {
	buf := make([]byte, HeaderSize)
	buf[0] = h.Type
	buf[1] = packFlags(h.TTL, h.IntNeighbour, h.Visited, h.MyInternet)
	binary.LittleEndian.PutUint32(buf[2:6], h.DestinationID)
	binary.LittleEndian.PutUint32(buf[6:10], h.SenderID)
	binary.LittleEndian.PutUint32(buf[10:14], h.OriginID)
	binary.LittleEndian.PutUint32(buf[14:18], h.NextHopID)
	binary.LittleEndian.PutUint32(buf[18:22], h.Sequence)
	return buf
}

// Serialise appends the payload verbatim after the header.
func (p *Packet) Serialise() []byte {
	buf := make([]byte, HeaderSize+len(p.Payload))
	copy(buf, p.Header.Serialise())
	copy(buf[HeaderSize:], p.Payload)
	return buf
}

// DeserialiseHeader reads a header from buf. It fails without partial
// results when buf is shorter than HeaderSize.
func DeserialiseHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, fmt.Errorf("%w: need %d B got %d B", ErrTruncated, HeaderSize, len(buf))
	}
	var h Header
	h.Type = buf[0]
	h.TTL, h.IntNeighbour, h.Visited, h.MyInternet = unpackFlags(buf[1])
	h.DestinationID = binary.LittleEndian.Uint32(buf[2:6])
	h.SenderID = binary.LittleEndian.Uint32(buf[6:10])
	h.OriginID = binary.LittleEndian.Uint32(buf[10:14])
	h.NextHopID = binary.LittleEndian.Uint32(buf[14:18])
	h.Sequence = binary.LittleEndian.Uint32(buf[18:22])
	return h, nil
}

// Deserialise reads a whole packet; any bytes past the header become the
// payload verbatim. No checksum - integrity is the transport's problem.
func Deserialise(buf []byte) (Packet, error) {
	h, err := DeserialiseHeader(buf)
	if err != nil {
		return Packet{}, err
	}
	p := Packet{Header: h}
	if len(buf) > HeaderSize {
		p.Payload = make([]byte, len(buf)-HeaderSize)
		copy(p.Payload, buf[HeaderSize:])
	}
	return p, nil
}

// CreateHello builds a HELLO header: ttl=1, all flags clear, next hop
// broadcast, no payload.
func CreateHello(destID, senderID, originID, sequence uint32) Header {
	return Header{
		Type:          KindHello,
		TTL:           DefaultControlTTL,
		DestinationID: destID,
		SenderID:      senderID,
		OriginID:      originID,
		NextHopID:     BroadcastID,
		Sequence:      sequence,
	}
}

// CreateAck builds an ACK header carrying the sender's own and its best
// neighbour's internet-reachability bits - the vehicle for two-hop
// internet-visibility propagation.
func CreateAck(destID, senderID, originID, nextHopID, sequence uint32, myInternet, intNeighbour bool) Header {
	return Header{
		Type:          KindAck,
		TTL:           DefaultControlTTL,
		IntNeighbour:  intNeighbour,
		MyInternet:    myInternet,
		DestinationID: destID,
		SenderID:      senderID,
		OriginID:      originID,
		NextHopID:     nextHopID,
		Sequence:      sequence,
	}
}

// CreateData builds an unrouted DATA packet: ttl=15, next hop undetermined
// until a routing decision stamps it.
func CreateData(destID, senderID, originID, sequence uint32, payload []byte) Packet {
	return Packet{
		Header: Header{
			Type:          KindData,
			TTL:           DefaultDataTTL,
			DestinationID: destID,
			SenderID:      senderID,
			OriginID:      originID,
			NextHopID:     BroadcastID,
			Sequence:      sequence,
		},
		Payload: payload,
	}
}

func KindName(t uint8) string {
	switch t {
	case KindHello:
		return "HELLO"
	case KindAck:
		return "ACK"
	case KindData:
		return "DATA"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", t)
	}
}
