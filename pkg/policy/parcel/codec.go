package parcel

import (
	"fmt"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// WriteCriterion appends the wire form of c.
func WriteCriterion(p *Parcel, c mix.Criterion) {
	p.WriteUint32(uint32(c.Rule()))
	p.WriteInt32(c.RawValue())
}

// ReadCriterion reads one criterion. Rule bits are not validated.
func ReadCriterion(p *Parcel) (mix.Criterion, error) {
	rule, err := p.ReadUint32()
	if err != nil {
		return mix.Criterion{}, err
	}
	value, err := p.ReadInt32()
	if err != nil {
		return mix.Criterion{}, err
	}
	return mix.CriterionFromRule(mix.Rule(rule), value), nil
}

// WriteMix appends the wire form of m. Mixes with more criteria than the wire
// limit cannot be represented and fail with mix.ErrInvalidCriteria.
func WriteMix(p *Parcel, m *mix.Mix) error {
	if len(m.Criteria) > mix.MaxCriteriaPerMix {
		return fmt.Errorf("encode %q: %d criteria exceeds limit of %d: %w",
			m.RegistrationID, len(m.Criteria), mix.MaxCriteriaPerMix, mix.ErrInvalidCriteria)
	}

	p.WriteInt32(int32(m.Type))
	p.WriteUint32(m.Format.SampleRate)
	p.WriteUint32(m.Format.Format)
	p.WriteUint32(m.Format.ChannelMask)
	p.WriteUint32(uint32(m.RouteFlags))
	p.WriteUint32(uint32(m.DeviceType))
	p.WriteString8(m.RegistrationID)
	p.WriteUint32(uint32(m.CallbackFlags))
	p.WriteBool(m.AllowPrivilegedMediaPlaybackCapture)
	p.WriteBool(m.VoiceCommunicationCaptureAllowed)
	p.WriteInt32(int32(len(m.Criteria)))
	for _, c := range m.Criteria {
		WriteCriterion(p, c)
	}
	return nil
}

// ReadMix reads one mix. The returned mix has a zero Token.
func ReadMix(p *Parcel) (*mix.Mix, error) {
	var (
		m   mix.Mix
		err error
		u   uint32
		i   int32
	)

	if i, err = p.ReadInt32(); err != nil {
		return nil, err
	}
	m.Type = mix.Type(i)
	if m.Format.SampleRate, err = p.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Format.Format, err = p.ReadUint32(); err != nil {
		return nil, err
	}
	if m.Format.ChannelMask, err = p.ReadUint32(); err != nil {
		return nil, err
	}
	if u, err = p.ReadUint32(); err != nil {
		return nil, err
	}
	m.RouteFlags = mix.RouteFlags(u)
	if u, err = p.ReadUint32(); err != nil {
		return nil, err
	}
	m.DeviceType = mix.DeviceType(u)
	if m.RegistrationID, err = p.ReadString8(); err != nil {
		return nil, err
	}
	if u, err = p.ReadUint32(); err != nil {
		return nil, err
	}
	m.CallbackFlags = mix.CallbackFlags(u)
	if m.AllowPrivilegedMediaPlaybackCapture, err = p.ReadBool(); err != nil {
		return nil, err
	}
	if m.VoiceCommunicationCaptureAllowed, err = p.ReadBool(); err != nil {
		return nil, err
	}

	countAt := p.Position()
	count, err := p.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count < 0 || count > mix.MaxCriteriaPerMix {
		return nil, malformed(countAt, "criteria count %d outside [0, %d]", count, mix.MaxCriteriaPerMix)
	}
	if count > 0 {
		m.Criteria = make([]mix.Criterion, 0, count)
	}
	for range count {
		c, err := ReadCriterion(p)
		if err != nil {
			return nil, err
		}
		m.Criteria = append(m.Criteria, c)
	}
	return &m, nil
}

// WriteMixes appends a count followed by every mix.
func WriteMixes(p *Parcel, mixes []*mix.Mix) error {
	if len(mixes) > mix.MaxMixesPerPolicy {
		return fmt.Errorf("encode: %d mixes exceeds limit of %d: %w",
			len(mixes), mix.MaxMixesPerPolicy, mix.ErrCapacityExceeded)
	}
	p.WriteInt32(int32(len(mixes)))
	for _, m := range mixes {
		if err := WriteMix(p, m); err != nil {
			return err
		}
	}
	return nil
}

// ReadMixes reads a list written by WriteMixes.
func ReadMixes(p *Parcel) ([]*mix.Mix, error) {
	countAt := p.Position()
	count, err := p.ReadInt32()
	if err != nil {
		return nil, err
	}
	if count < 0 || count > mix.MaxMixesPerPolicy {
		return nil, malformed(countAt, "mix count %d outside [0, %d]", count, mix.MaxMixesPerPolicy)
	}
	mixes := make([]*mix.Mix, 0, count)
	for range count {
		m, err := ReadMix(p)
		if err != nil {
			return nil, err
		}
		mixes = append(mixes, m)
	}
	return mixes, nil
}

// MarshalMix returns the wire form of a single mix.
func MarshalMix(m *mix.Mix) ([]byte, error) {
	p := New()
	if err := WriteMix(p, m); err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

// UnmarshalMix decodes a buffer holding exactly one mix.
func UnmarshalMix(data []byte) (*mix.Mix, error) {
	p := FromBytes(data)
	m, err := ReadMix(p)
	if err != nil {
		return nil, err
	}
	if p.Remaining() != 0 {
		return nil, malformed(p.Position(), "%d trailing bytes", p.Remaining())
	}
	return m, nil
}

// MarshalMixes returns the wire form of a register request.
func MarshalMixes(mixes []*mix.Mix) ([]byte, error) {
	p := New()
	if err := WriteMixes(p, mixes); err != nil {
		return nil, err
	}
	return p.Bytes(), nil
}

// UnmarshalMixes decodes a buffer holding exactly one mix list.
func UnmarshalMixes(data []byte) ([]*mix.Mix, error) {
	p := FromBytes(data)
	mixes, err := ReadMixes(p)
	if err != nil {
		return nil, err
	}
	if p.Remaining() != 0 {
		return nil, malformed(p.Position(), "%d trailing bytes", p.Remaining())
	}
	return mixes, nil
}
