package parcel

import (
	"bytes"
	"encoding/binary"
)

const slot = 4

// Parcel is a growable write buffer and a bounded read cursor over the same
// bytes.
type Parcel struct {
	buf []byte
	pos int
}

// New returns an empty parcel ready for writing.
func New() *Parcel {
	return &Parcel{}
}

// FromBytes returns a parcel that reads data from its start. data is not
// copied.
func FromBytes(data []byte) *Parcel {
	return &Parcel{buf: data}
}

// Bytes returns the written data.
func (p *Parcel) Bytes() []byte {
	return p.buf
}

// Len returns the total size of the data.
func (p *Parcel) Len() int {
	return len(p.buf)
}

// Position returns the read offset.
func (p *Parcel) Position() int {
	return p.pos
}

// Remaining returns the number of unread bytes.
func (p *Parcel) Remaining() int {
	return len(p.buf) - p.pos
}

// WriteInt32 appends one slot.
func (p *Parcel) WriteInt32(v int32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, uint32(v))
}

// WriteUint32 appends one slot.
func (p *Parcel) WriteUint32(v uint32) {
	p.buf = binary.LittleEndian.AppendUint32(p.buf, v)
}

// WriteBool appends one slot holding 0 or 1.
func (p *Parcel) WriteBool(v bool) {
	if v {
		p.WriteInt32(1)
		return
	}
	p.WriteInt32(0)
}

// WriteString8 appends a length-prefixed, NUL-terminated, padded string.
func (p *Parcel) WriteString8(s string) {
	p.WriteInt32(int32(len(s)))
	p.buf = append(p.buf, s...)
	p.buf = append(p.buf, 0)
	for len(p.buf)%slot != 0 {
		p.buf = append(p.buf, 0)
	}
}

// ReadInt32 reads one slot.
func (p *Parcel) ReadInt32() (int32, error) {
	v, err := p.ReadUint32()
	return int32(v), err
}

// ReadUint32 reads one slot.
func (p *Parcel) ReadUint32() (uint32, error) {
	if p.Remaining() < slot {
		return 0, malformed(p.pos, "need %d bytes, have %d", slot, p.Remaining())
	}
	v := binary.LittleEndian.Uint32(p.buf[p.pos:])
	p.pos += slot
	return v, nil
}

// ReadBool reads one slot; any value other than 0 or 1 is malformed.
func (p *Parcel) ReadBool() (bool, error) {
	start := p.pos
	v, err := p.ReadInt32()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, malformed(start, "boolean slot holds %d", v)
	}
}

// ReadString8 reads a string written by WriteString8.
func (p *Parcel) ReadString8() (string, error) {
	start := p.pos
	n, err := p.ReadInt32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", malformed(start, "negative string length %d", n)
	}
	padded := (int(n) + 1 + slot - 1) / slot * slot
	if p.Remaining() < padded {
		return "", malformed(p.pos, "string of %d bytes overruns buffer", n)
	}
	data := p.buf[p.pos : p.pos+padded]
	if data[n] != 0 {
		return "", malformed(p.pos+int(n), "missing string terminator")
	}
	if !bytes.Equal(data[n+1:], make([]byte, padded-int(n)-1)) {
		return "", malformed(p.pos+int(n)+1, "non-zero string padding")
	}
	p.pos += padded
	return string(data[:n]), nil
}
