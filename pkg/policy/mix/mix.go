package mix

import "fmt"

// Format is the audio format descriptor of a mix. It is carried to the
// routing layer and never interpreted by matching.
type Format struct {
	SampleRate  uint32
	Format      uint32
	ChannelMask uint32
}

// Mix is a dynamically registered routing rule: match criteria plus the
// destination and routing behaviour of matched streams.
type Mix struct {
	Criteria       []Criterion
	Type           Type
	Format         Format
	RouteFlags     RouteFlags
	RegistrationID string
	DeviceType     DeviceType
	CallbackFlags  CallbackFlags

	// Token identifies the owner. It is process-local and never serialized.
	Token Token

	// AllowPrivilegedMediaPlaybackCapture ignores the no-media-projection
	// flag of captured players.
	AllowPrivilegedMediaPlaybackCapture bool
	// VoiceCommunicationCaptureAllowed lets the mix capture voice
	// communication output.
	VoiceCommunicationCaptureAllowed bool
}

// DeviceAddress returns the address of the device the mix binds to, which is
// its registration id.
func (m *Mix) DeviceAddress() string {
	return m.RegistrationID
}

// SetMatchUID makes uid the only UID criterion, with match polarity.
func (m *Mix) SetMatchUID(uid UID) {
	m.replaceField(MatchUID(uid))
}

// SetExcludeUID makes uid the only UID criterion, with exclude polarity.
func (m *Mix) SetExcludeUID(uid UID) {
	m.replaceField(ExcludeUID(uid))
}

// HasUIDRule reports whether a UID criterion with polarity match (true for
// inclusion) and value uid exists.
func (m *Mix) HasUIDRule(match bool, uid UID) bool {
	for _, c := range m.Criteria {
		if v, ok := c.Value.(UID); ok && c.Exclude != match && v == uid {
			return true
		}
	}
	return false
}

// HasMatchUIDRule reports whether any inclusion UID criterion exists.
func (m *Mix) HasMatchUIDRule() bool {
	return m.hasFieldRule(FieldUID, true)
}

// SetMatchUserID makes id the only user id criterion, with match polarity.
func (m *Mix) SetMatchUserID(id UserID) {
	m.replaceField(MatchUserID(id))
}

// SetExcludeUserID makes id the only user id criterion, with exclude polarity.
func (m *Mix) SetExcludeUserID(id UserID) {
	m.replaceField(ExcludeUserID(id))
}

// HasUserIDRule reports whether a user id criterion with polarity match and
// value id exists.
func (m *Mix) HasUserIDRule(match bool, id UserID) bool {
	for _, c := range m.Criteria {
		if v, ok := c.Value.(UserID); ok && c.Exclude != match && v == id {
			return true
		}
	}
	return false
}

// HasAnyUserIDRule reports whether a user id criterion with polarity match
// exists, whatever its value.
func (m *Mix) HasAnyUserIDRule(match bool) bool {
	return m.hasFieldRule(FieldUserID, match)
}

// IsDeviceAffinityCompatible reports whether the mix may take part in device
// affinity routing, which only applies to mixes that do not loop back.
func (m *Mix) IsDeviceAffinityCompatible() bool {
	return !m.RouteFlags.IsLoopBack()
}

// Clone returns a copy that shares no criteria storage with m.
func (m *Mix) Clone() *Mix {
	out := *m
	if m.Criteria != nil {
		out.Criteria = make([]Criterion, len(m.Criteria))
		copy(out.Criteria, m.Criteria)
	}
	return &out
}

// String renders a short description for logs.
func (m *Mix) String() string {
	return fmt.Sprintf("mix %q type=%s route=%#x criteria=%d", m.RegistrationID, m.Type, uint32(m.RouteFlags), len(m.Criteria))
}

func (m *Mix) hasFieldRule(f Field, match bool) bool {
	for _, c := range m.Criteria {
		if c.Field() == f && c.Exclude != match {
			return true
		}
	}
	return false
}

// replaceField drops every criterion on c's field and appends c.
func (m *Mix) replaceField(c Criterion) {
	f := c.Field()
	kept := m.Criteria[:0]
	for _, existing := range m.Criteria {
		if existing.Field() != f {
			kept = append(kept, existing)
		}
	}
	m.Criteria = append(kept, c)
}
