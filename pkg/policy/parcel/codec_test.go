package parcel

import (
	"bytes"
	"encoding/binary"
	"errors"
	"reflect"
	"testing"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

func fullMix(criteria int) *mix.Mix {
	m := &mix.Mix{
		Type:                                mix.TypeRecorders,
		Format:                              mix.Format{SampleRate: 48000, Format: 1, ChannelMask: 0xC},
		RouteFlags:                          mix.RouteLoopBackAndRender | mix.RouteDisallowsPreferredDevice,
		RegistrationID:                      "remote_submix:0",
		DeviceType:                          mix.DeviceInRemoteSubmix,
		CallbackFlags:                       mix.CallbackNotifyActivity,
		AllowPrivilegedMediaPlaybackCapture: true,
		VoiceCommunicationCaptureAllowed:    true,
	}
	for i := range criteria {
		switch i % 5 {
		case 0:
			m.Criteria = append(m.Criteria, mix.ExcludeSource(mix.Source(i)))
		case 1:
			m.Criteria = append(m.Criteria, mix.MatchUID(mix.UID(100000+i)))
		case 2:
			m.Criteria = append(m.Criteria, mix.ExcludeUserID(mix.UserID(i)))
		case 3:
			m.Criteria = append(m.Criteria, mix.MatchSession(mix.SessionID(i)))
		case 4:
			m.Criteria = append(m.Criteria, mix.MatchUsage(mix.Usage(i)))
		}
	}
	return m
}

func TestMix_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		mix  *mix.Mix
	}{
		{"empty", &mix.Mix{Type: mix.TypePlayers}},
		{"one criterion", fullMix(1)},
		{"maximum criteria", fullMix(mix.MaxCriteriaPerMix)},
		{"odd address length", &mix.Mix{Type: mix.TypePlayers, RegistrationID: "abc"}},
		{"aligned address length", &mix.Mix{Type: mix.TypePlayers, RegistrationID: "abcd"}},
		{"invalid type survives", &mix.Mix{Type: mix.TypeInvalid}},
		{"ill-formed rule survives", &mix.Mix{Type: mix.TypePlayers, Criteria: []mix.Criterion{
			mix.CriterionFromRule(mix.Rule(0x3)|mix.RuleExclusionMask, 12),
		}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := MarshalMix(tt.mix)
			if err != nil {
				t.Fatalf("MarshalMix() error = %v", err)
			}
			if len(data)%4 != 0 {
				t.Errorf("encoded length %d is not slot aligned", len(data))
			}

			got, err := UnmarshalMix(data)
			if err != nil {
				t.Fatalf("UnmarshalMix() error = %v", err)
			}
			if !reflect.DeepEqual(got, tt.mix) {
				t.Errorf("round trip mismatch\n got: %#v\nwant: %#v", got, tt.mix)
			}

			again, err := MarshalMix(got)
			if err != nil {
				t.Fatalf("second MarshalMix() error = %v", err)
			}
			if !bytes.Equal(again, data) {
				t.Error("encoding is not deterministic")
			}
		})
	}
}

func TestMix_TokenNotSerialized(t *testing.T) {
	m := fullMix(3)
	m.Token = mix.NewToken()

	data, err := MarshalMix(m)
	if err != nil {
		t.Fatalf("MarshalMix() error = %v", err)
	}
	got, err := UnmarshalMix(data)
	if err != nil {
		t.Fatalf("UnmarshalMix() error = %v", err)
	}
	if !got.Token.IsZero() {
		t.Error("decoded mix carries a token")
	}
	got.Token = m.Token
	if !reflect.DeepEqual(got, m) {
		t.Error("fields other than the token changed")
	}
}

func TestMix_Layout(t *testing.T) {
	m := &mix.Mix{
		Type:           mix.TypePlayers,
		Format:         mix.Format{SampleRate: 44100, Format: 1, ChannelMask: 3},
		RouteFlags:     mix.RouteLoopBack,
		RegistrationID: "ab",
		DeviceType:     mix.DeviceOutRemoteSubmix,
		CallbackFlags:  mix.CallbackNotifyActivity,
		Criteria:       []mix.Criterion{mix.ExcludeUsage(mix.UsageAlarm)},
	}

	var want []byte
	put := func(v uint32) { want = binary.LittleEndian.AppendUint32(want, v) }
	put(0)      // type
	put(44100)  // sample rate
	put(1)      // format
	put(3)      // channel mask
	put(0x2)    // route flags
	put(0x8000) // device type
	put(2)      // address length
	want = append(want, 'a', 'b', 0, 0)
	put(1)      // callback flags
	put(0)      // allow privileged
	put(0)      // voice communication
	put(1)      // criteria
	put(0x8001) // exclude usage
	put(4)      // alarm

	got, err := MarshalMix(m)
	if err != nil {
		t.Fatalf("MarshalMix() error = %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("layout mismatch\n got: % x\nwant: % x", got, want)
	}
}

func TestMixes_RoundTrip(t *testing.T) {
	mixes := []*mix.Mix{fullMix(0), fullMix(7), {Type: mix.TypePlayers, RegistrationID: "x"}}

	data, err := MarshalMixes(mixes)
	if err != nil {
		t.Fatalf("MarshalMixes() error = %v", err)
	}
	got, err := UnmarshalMixes(data)
	if err != nil {
		t.Fatalf("UnmarshalMixes() error = %v", err)
	}
	if !reflect.DeepEqual(got, mixes) {
		t.Error("mix list round trip mismatch")
	}
}

func TestEncode_Limits(t *testing.T) {
	if _, err := MarshalMix(fullMix(mix.MaxCriteriaPerMix + 1)); !errors.Is(err, mix.ErrInvalidCriteria) {
		t.Errorf("MarshalMix(21 criteria) error = %v, want ErrInvalidCriteria", err)
	}

	many := make([]*mix.Mix, mix.MaxMixesPerPolicy+1)
	for i := range many {
		many[i] = &mix.Mix{Type: mix.TypePlayers}
	}
	if _, err := MarshalMixes(many); !errors.Is(err, mix.ErrCapacityExceeded) {
		t.Errorf("MarshalMixes(51) error = %v, want ErrCapacityExceeded", err)
	}
}

// header encodes a mix prefix up to and including the criteria count.
func header(address string, criteria int32) *Parcel {
	p := New()
	p.WriteInt32(int32(mix.TypePlayers))
	p.WriteUint32(0)
	p.WriteUint32(0)
	p.WriteUint32(0)
	p.WriteUint32(0)
	p.WriteUint32(0)
	p.WriteString8(address)
	p.WriteUint32(0)
	p.WriteBool(false)
	p.WriteBool(false)
	p.WriteInt32(criteria)
	return p
}

func TestDecode_Malformed(t *testing.T) {
	valid, err := MarshalMix(fullMix(2))
	if err != nil {
		t.Fatalf("MarshalMix() error = %v", err)
	}

	tooManyCriteria := header("a", mix.MaxCriteriaPerMix+1)
	for range mix.MaxCriteriaPerMix + 1 {
		WriteCriterion(tooManyCriteria, mix.MatchUID(1))
	}

	negativeLength := New()
	for range 6 {
		negativeLength.WriteInt32(0)
	}
	negativeLength.WriteInt32(-5)

	noTerminator := New()
	for range 6 {
		noTerminator.WriteInt32(0)
	}
	noTerminator.WriteInt32(3)
	noTerminator.buf = append(noTerminator.buf, 'a', 'b', 'c', 'd')

	badBool := header("", 0)
	badBool.buf = badBool.buf[:len(badBool.buf)-12]
	badBool.WriteInt32(2)
	badBool.WriteBool(false)
	badBool.WriteInt32(0)

	tests := []struct {
		name string
		data []byte
	}{
		{"empty buffer", nil},
		{"truncated header", valid[:10]},
		{"truncated criteria", valid[:len(valid)-4]},
		{"trailing bytes", append(append([]byte{}, valid...), 0, 0, 0, 0)},
		{"criteria count over limit", tooManyCriteria.Bytes()},
		{"negative criteria count", header("a", -1).Bytes()},
		{"negative string length", negativeLength.Bytes()},
		{"string without terminator", noTerminator.Bytes()},
		{"boolean out of range", badBool.Bytes()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := UnmarshalMix(tt.data)
			if !errors.Is(err, mix.ErrMalformedInput) {
				t.Fatalf("UnmarshalMix() error = %v, want ErrMalformedInput", err)
			}
			var decodeErr *DecodeError
			if !errors.As(err, &decodeErr) {
				t.Errorf("error %T is not a *DecodeError", err)
			}
		})
	}
}

func TestDecodeMixes_Malformed(t *testing.T) {
	over := New()
	over.WriteInt32(mix.MaxMixesPerPolicy + 1)
	for range mix.MaxMixesPerPolicy + 1 {
		if err := WriteMix(over, &mix.Mix{Type: mix.TypePlayers}); err != nil {
			t.Fatalf("WriteMix() error = %v", err)
		}
	}

	negative := New()
	negative.WriteInt32(-1)

	short := New()
	short.WriteInt32(2)
	if err := WriteMix(short, &mix.Mix{Type: mix.TypePlayers}); err != nil {
		t.Fatalf("WriteMix() error = %v", err)
	}

	for name, data := range map[string][]byte{
		"mix count over limit":      over.Bytes(),
		"negative mix count":        negative.Bytes(),
		"fewer mixes than declared": short.Bytes(),
	} {
		t.Run(name, func(t *testing.T) {
			if _, err := UnmarshalMixes(data); !errors.Is(err, mix.ErrMalformedInput) {
				t.Errorf("UnmarshalMixes() error = %v, want ErrMalformedInput", err)
			}
		})
	}
}

func TestString8_Padding(t *testing.T) {
	for _, s := range []string{"", "a", "ab", "abc", "abcd", "abcde"} {
		p := New()
		p.WriteString8(s)
		if want := 4 + (len(s)+1+3)/4*4; p.Len() != want {
			t.Errorf("WriteString8(%q) length = %d, want %d", s, p.Len(), want)
		}
		got, err := FromBytes(p.Bytes()).ReadString8()
		if err != nil || got != s {
			t.Errorf("ReadString8() = %q, %v; want %q", got, err, s)
		}
	}
}
