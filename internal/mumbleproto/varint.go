// Package mumbleproto hand-encodes the protobuf-wire-format records carried
// as frame payloads for every message kind except UDPTunnel. Field numbers
// and wire types follow the schema shared between client and server; there
// is no generated code here, only protowire's low-level primitives.
package mumbleproto

import "google.golang.org/protobuf/encoding/protowire"

// builder accumulates protowire-encoded fields in field-number order. Callers
// append in ascending field-number order by convention (not required by the
// wire format, but it keeps output deterministic and diffable).
type builder struct {
	buf []byte
}

func (b *builder) varint(num protowire.Number, v uint64) {
	b.buf = protowire.AppendTag(b.buf, num, protowire.VarintType)
	b.buf = protowire.AppendVarint(b.buf, v)
}

func (b *builder) uint32(num protowire.Number, v *uint32) {
	if v == nil {
		return
	}
	b.varint(num, uint64(*v))
}

func (b *builder) uint64(num protowire.Number, v *uint64) {
	if v == nil {
		return
	}
	b.varint(num, *v)
}

func (b *builder) boolean(num protowire.Number, v *bool) {
	if v == nil {
		return
	}
	u := uint64(0)
	if *v {
		u = 1
	}
	b.varint(num, u)
}

func (b *builder) str(num protowire.Number, v *string) {
	if v == nil {
		return
	}
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendString(b.buf, *v)
}

func (b *builder) bytes(num protowire.Number, v []byte) {
	if v == nil {
		return
	}
	b.buf = protowire.AppendTag(b.buf, num, protowire.BytesType)
	b.buf = protowire.AppendBytes(b.buf, v)
}

func (b *builder) repeatedUint32(num protowire.Number, vs []uint32) {
	for _, v := range vs {
		b.varint(num, uint64(v))
	}
}

func (b *builder) bytesField(num protowire.Number, v *string) {
	b.str(num, v)
}

// fieldIterator walks the tag/value pairs of a protowire-encoded message,
// dispatching each to the supplied handler. Unknown field numbers are
// skipped, matching protobuf's forward-compatibility contract.
func fieldIterator(data []byte, handle func(num protowire.Number, typ protowire.Type, data []byte) (n int, ok bool)) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return protowire.ParseError(n)
		}
		data = data[n:]

		consumed, ok := handle(num, typ, data)
		if !ok {
			// Unrecognized field number, or a value the handler could not
			// consume: skip it whole.
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return protowire.ParseError(n)
			}
			data = data[n:]
			continue
		}
		data = data[consumed:]
	}
	return nil
}

func consumeVarint(data []byte) (uint64, int, bool) {
	v, n := protowire.ConsumeVarint(data)
	if n < 0 {
		return 0, 0, false
	}
	return v, n, true
}

func consumeBytes(data []byte) ([]byte, int, bool) {
	v, n := protowire.ConsumeBytes(data)
	if n < 0 {
		return nil, 0, false
	}
	return v, n, true
}
