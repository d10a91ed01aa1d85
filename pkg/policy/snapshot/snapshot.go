package snapshot

import (
	"encoding/hex"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/blake3"

	"mercator-hq/mixpolicy/pkg/policy/mix"
	"mercator-hq/mixpolicy/pkg/policy/parcel"
)

// Version is the snapshot format version.
const Version = 1

// ContentType is the media type of an encoded snapshot.
const ContentType = "application/cbor"

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("snapshot: CBOR encoder initialization failed: " + err.Error())
	}

	decMode, err = cbor.DecOptions{
		DupMapKey: cbor.DupMapKeyEnforcedAPF,
	}.DecMode()
	if err != nil {
		panic("snapshot: CBOR decoder initialization failed: " + err.Error())
	}
}

// digestKey is the BLAKE3 key of snapshot digests: the ASCII domain name
// zero-padded to 32 bytes.
var digestKey = [32]byte{
	'm', 'i', 'x', 'p', 'o', 'l', 'i', 'c', 'y', '.', 's', 'n', 'a', 'p', 's', 'h',
	'o', 't', 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Digest is a BLAKE3 digest of the parcel encoding of a mix list.
type Digest [32]byte

// String returns the digest in hex.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// ParseDigest parses the hex form returned by Digest.String.
func ParseDigest(s string) (Digest, error) {
	var d Digest
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(d) {
		return d, fmt.Errorf("invalid snapshot digest %q", s)
	}
	copy(d[:], b)
	return d, nil
}

// Criterion is the snapshot form of a match criterion.
type Criterion struct {
	Field   string `cbor:"field"`
	Rule    uint32 `cbor:"rule"`
	Exclude bool   `cbor:"exclude"`
	Value   int32  `cbor:"value"`
}

// Format is the snapshot form of a mix format.
type Format struct {
	SampleRate  uint32 `cbor:"sample_rate"`
	Format      uint32 `cbor:"format"`
	ChannelMask uint32 `cbor:"channel_mask"`
}

// Record is the snapshot form of one registered mix.
type Record struct {
	RegistrationID                      string      `cbor:"registration_id"`
	Owner                               string      `cbor:"owner"`
	Type                                int32       `cbor:"type"`
	Format                              Format      `cbor:"format"`
	RouteFlags                          uint32      `cbor:"route_flags"`
	DeviceType                          uint32      `cbor:"device_type"`
	CallbackFlags                       uint32      `cbor:"callback_flags"`
	AllowPrivilegedMediaPlaybackCapture bool        `cbor:"allow_privileged_capture"`
	VoiceCommunicationCaptureAllowed    bool        `cbor:"voice_communication_capture"`
	Criteria                            []Criterion `cbor:"criteria"`
}

// Snapshot is a point-in-time dump of the registry in registration order.
type Snapshot struct {
	Version    int      `cbor:"version"`
	Generation uint64   `cbor:"generation"`
	Digest     string   `cbor:"digest"`
	Mixes      []Record `cbor:"mixes"`
}

// Build captures mixes at the given registry generation.
func Build(mixes []*mix.Mix, generation uint64) (*Snapshot, error) {
	digest, err := DigestOf(mixes)
	if err != nil {
		return nil, err
	}

	s := &Snapshot{
		Version:    Version,
		Generation: generation,
		Digest:     digest.String(),
		Mixes:      make([]Record, len(mixes)),
	}
	for i, m := range mixes {
		s.Mixes[i] = record(m)
	}
	return s, nil
}

// DigestOf hashes the parcel encoding of mixes. Owner tokens are not part
// of the wire form and do not affect the digest.
func DigestOf(mixes []*mix.Mix) (Digest, error) {
	data, err := parcel.MarshalMixes(mixes)
	if err != nil {
		return Digest{}, fmt.Errorf("snapshot digest: %w", err)
	}

	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		panic("snapshot: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	_, _ = hasher.Write(data)

	var d Digest
	copy(d[:], hasher.Sum(nil))
	return d, nil
}

// Marshal encodes s with CBOR core deterministic encoding; equal snapshots
// always produce identical bytes.
func Marshal(s *Snapshot) ([]byte, error) {
	return encMode.Marshal(s)
}

// Unmarshal decodes a snapshot produced by Marshal.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := decMode.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if s.Version != Version {
		return nil, fmt.Errorf("unsupported snapshot version %d", s.Version)
	}
	return &s, nil
}

// Restore rebuilds the mixes of s, owner tokens included.
func (s *Snapshot) Restore() ([]*mix.Mix, error) {
	mixes := make([]*mix.Mix, len(s.Mixes))
	for i, r := range s.Mixes {
		m := &mix.Mix{
			RegistrationID: r.RegistrationID,
			Type:           mix.Type(r.Type),
			Format: mix.Format{
				SampleRate:  r.Format.SampleRate,
				Format:      r.Format.Format,
				ChannelMask: r.Format.ChannelMask,
			},
			RouteFlags:                          mix.RouteFlags(r.RouteFlags),
			DeviceType:                          mix.DeviceType(r.DeviceType),
			CallbackFlags:                       mix.CallbackFlags(r.CallbackFlags),
			AllowPrivilegedMediaPlaybackCapture: r.AllowPrivilegedMediaPlaybackCapture,
			VoiceCommunicationCaptureAllowed:    r.VoiceCommunicationCaptureAllowed,
		}
		if r.Owner != "" {
			token, err := mix.ParseToken(r.Owner)
			if err != nil {
				return nil, fmt.Errorf("restore %q: %w", r.RegistrationID, err)
			}
			m.Token = token
		}
		if len(r.Criteria) > 0 {
			m.Criteria = make([]mix.Criterion, len(r.Criteria))
			for j, c := range r.Criteria {
				m.Criteria[j] = mix.CriterionFromRule(mix.Rule(c.Rule), c.Value)
			}
		}
		mixes[i] = m
	}
	return mixes, nil
}

// Verify recomputes the digest of the restored mixes and compares it with
// the recorded one.
func (s *Snapshot) Verify() error {
	mixes, err := s.Restore()
	if err != nil {
		return err
	}
	got, err := DigestOf(mixes)
	if err != nil {
		return err
	}
	if got.String() != s.Digest {
		return fmt.Errorf("snapshot digest mismatch: recorded %s, computed %s", s.Digest, got)
	}
	return nil
}

func record(m *mix.Mix) Record {
	r := Record{
		RegistrationID: m.RegistrationID,
		Type:           int32(m.Type),
		Format: Format{
			SampleRate:  m.Format.SampleRate,
			Format:      m.Format.Format,
			ChannelMask: m.Format.ChannelMask,
		},
		RouteFlags:                          uint32(m.RouteFlags),
		DeviceType:                          uint32(m.DeviceType),
		CallbackFlags:                       uint32(m.CallbackFlags),
		AllowPrivilegedMediaPlaybackCapture: m.AllowPrivilegedMediaPlaybackCapture,
		VoiceCommunicationCaptureAllowed:    m.VoiceCommunicationCaptureAllowed,
	}
	if !m.Token.IsZero() {
		r.Owner = m.Token.String()
	}
	for _, c := range m.Criteria {
		r.Criteria = append(r.Criteria, Criterion{
			Field:   c.Field().String(),
			Rule:    uint32(c.Rule()),
			Exclude: c.IsExcludeCriterion(),
			Value:   c.RawValue(),
		})
	}
	return r
}
