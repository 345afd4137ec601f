// Package onion_model defines the envelope nodes exchange: a handshake carrying a
// public key, or an onion made of a head and a body. The encoding is compatible with
//
//	message ProtoPacket { Handshake h_shake = 1; OnionHead o_head = 2; OnionBody o_body = 3; }
//	message Handshake   { bytes publickey = 1; }
//	message OnionHead   { uint32 onionid = 1; bytes onion_message = 2; optional bytes padding = 3; }
//	message OnionBody   { optional int32 aggregatedvalue = 1; }
package onion_model

import (
	"github.com/pkg/errors"
	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformedPacket is returned when an envelope cannot be decoded.
var ErrMalformedPacket = errors.New("onion_model: malformed packet")

// Field numbers of the envelope messages.
const (
	packetHandshakeField protowire.Number = 1
	packetHeadField      protowire.Number = 2
	packetBodyField      protowire.Number = 3

	handshakePublicKeyField protowire.Number = 1

	headOnionIDField protowire.Number = 1
	headMessageField protowire.Number = 2
	headPaddingField protowire.Number = 3

	bodyAggregateField protowire.Number = 1
)

// Handshake announces a node's public key to the sink.
type Handshake struct {
	PublicKey []byte
}

// Head identifies an onion and carries its remaining encrypted layers.
type Head struct {
	OnionID      uint32
	OnionMessage []byte
	Padding      []byte // nil when the onion is not padded to a fixed length
}

// Body is the part of the envelope sensors may change in transit.
type Body struct {
	AggregatedValue *int32 // nil when the onion does not aggregate
}

// Packet is the envelope exchanged between nodes. A handshake carries only
// Handshake; an onion carries Head and Body.
type Packet struct {
	Handshake *Handshake
	Head      *Head
	Body      *Body
}

// HasPadding reports whether the padding field is present.
func (h *Head) HasPadding() bool {
	return h.Padding != nil
}

// OuterLength is the size of the encrypted layers plus their padding.
func (h *Head) OuterLength() int {
	return len(h.OnionMessage) + len(h.Padding)
}

// Size is the encoded size of the head.
func (h *Head) Size() int {
	if h == nil {
		return 0
	}
	return len(h.marshal(nil))
}

// HasAggregate reports whether the aggregate field is present.
func (b *Body) HasAggregate() bool {
	return b != nil && b.AggregatedValue != nil
}

// Aggregate adds value to the aggregate. It does nothing when the field is absent.
func (b *Body) Aggregate(value int32) {
	if !b.HasAggregate() {
		return
	}
	sum := *b.AggregatedValue + value
	b.AggregatedValue = &sum
}

// Size is the encoded size of the body.
func (b *Body) Size() int {
	if b == nil {
		return 0
	}
	return len(b.marshal(nil))
}

// Int32 returns a pointer to v, for setting optional fields.
func Int32(v int32) *int32 {
	return &v
}

func NewHandshake(publicKey []byte) *Packet {
	return &Packet{Handshake: &Handshake{PublicKey: publicKey}}
}

func NewOnion(head *Head, body *Body) *Packet {
	if body == nil {
		body = &Body{}
	}
	return &Packet{Head: head, Body: body}
}

// IsHandshake reports whether p announces a public key.
func (p *Packet) IsHandshake() bool {
	return p.Handshake != nil
}

func (p *Packet) Marshal() []byte {
	var b []byte
	if p.Handshake != nil {
		b = protowire.AppendTag(b, packetHandshakeField, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Handshake.marshal(nil))
	}
	if p.Head != nil {
		b = protowire.AppendTag(b, packetHeadField, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Head.marshal(nil))
	}
	if p.Body != nil {
		b = protowire.AppendTag(b, packetBodyField, protowire.BytesType)
		b = protowire.AppendBytes(b, p.Body.marshal(nil))
	}
	return b
}

func (hs *Handshake) marshal(b []byte) []byte {
	if len(hs.PublicKey) > 0 {
		b = protowire.AppendTag(b, handshakePublicKeyField, protowire.BytesType)
		b = protowire.AppendBytes(b, hs.PublicKey)
	}
	return b
}

func (h *Head) marshal(b []byte) []byte {
	if h.OnionID != 0 {
		b = protowire.AppendTag(b, headOnionIDField, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(h.OnionID))
	}
	if len(h.OnionMessage) > 0 {
		b = protowire.AppendTag(b, headMessageField, protowire.BytesType)
		b = protowire.AppendBytes(b, h.OnionMessage)
	}
	if h.Padding != nil {
		b = protowire.AppendTag(b, headPaddingField, protowire.BytesType)
		b = protowire.AppendBytes(b, h.Padding)
	}
	return b
}

func (b *Body) marshal(buf []byte) []byte {
	if b.AggregatedValue != nil {
		buf = protowire.AppendTag(buf, bodyAggregateField, protowire.VarintType)
		// int32 fields are sign-extended to 64 bits on the wire.
		buf = protowire.AppendVarint(buf, uint64(int64(*b.AggregatedValue)))
	}
	return buf
}

// Unmarshal decodes an envelope. Unknown fields are skipped.
func Unmarshal(data []byte) (*Packet, error) {
	p := &Packet{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if typ != protowire.BytesType {
			return nil
		}
		switch num {
		case packetHandshakeField:
			hs, err := unmarshalHandshake(v)
			if err != nil {
				return err
			}
			p.Handshake = hs
		case packetHeadField:
			h, err := unmarshalHead(v)
			if err != nil {
				return err
			}
			p.Head = h
		case packetBodyField:
			body, err := unmarshalBody(v)
			if err != nil {
				return err
			}
			p.Body = body
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if p.Handshake == nil && p.Head == nil {
		return nil, errors.Wrap(ErrMalformedPacket, "neither handshake nor head present")
	}
	return p, nil
}

func unmarshalHandshake(data []byte) (*Handshake, error) {
	hs := &Handshake{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, _ uint64) error {
		if num == handshakePublicKeyField && typ == protowire.BytesType {
			hs.PublicKey = append([]byte{}, v...)
		}
		return nil
	})
	return hs, err
}

func unmarshalHead(data []byte) (*Head, error) {
	h := &Head{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error {
		switch {
		case num == headOnionIDField && typ == protowire.VarintType:
			h.OnionID = uint32(x)
		case num == headMessageField && typ == protowire.BytesType:
			h.OnionMessage = append([]byte{}, v...)
		case num == headPaddingField && typ == protowire.BytesType:
			h.Padding = append([]byte{}, v...)
		}
		return nil
	})
	return h, err
}

func unmarshalBody(data []byte) (*Body, error) {
	body := &Body{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, _ []byte, x uint64) error {
		if num == bodyAggregateField && typ == protowire.VarintType {
			body.AggregatedValue = Int32(int32(x))
		}
		return nil
	})
	return body, err
}

// walk calls fn for every field of a message. Bytes fields are passed in v and
// varints in x; other wire types are skipped.
func walk(data []byte, fn func(num protowire.Number, typ protowire.Type, v []byte, x uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return errors.Wrap(ErrMalformedPacket, protowire.ParseError(n).Error())
		}
		data = data[n:]

		var (
			v []byte
			x uint64
		)
		switch typ {
		case protowire.VarintType:
			x, n = protowire.ConsumeVarint(data)
		case protowire.BytesType:
			v, n = protowire.ConsumeBytes(data)
		default:
			n = protowire.ConsumeFieldValue(num, typ, data)
		}
		if n < 0 {
			return errors.Wrapf(ErrMalformedPacket, "field %d: %v", num, protowire.ParseError(n))
		}
		data = data[n:]

		if typ == protowire.VarintType || typ == protowire.BytesType {
			if err := fn(num, typ, v, x); err != nil {
				return err
			}
		}
	}
	return nil
}
