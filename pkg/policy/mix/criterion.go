package mix

import "fmt"

// Value is the tagged value of a criterion. The concrete type selects the
// stream attribute being tested. The set of implementations is closed:
// Usage, Source, UID, UserID, SessionID and RawValue.
type Value interface {
	// Field returns the attribute this value applies to.
	Field() Field
	// Raw returns the value as it appears in the wire int32 slot.
	Raw() int32

	isValue()
}

// Usage is the usage code of a playback stream.
type Usage int32

// Source is the capture preset of a capture stream.
type Source int32

// UID is the numeric identity of the application owning a stream.
type UID uint32

// UserID is the multi-user id of the stream owner.
type UserID int32

// SessionID is the audio session id of a stream.
type SessionID int32

// RawValue keeps a wire value whose rule does not address a single known
// field. It never matches any stream.
type RawValue struct {
	Rule  Rule
	Value int32
}

func (Usage) Field() Field     { return FieldUsage }
func (Source) Field() Field    { return FieldCapturePreset }
func (UID) Field() Field       { return FieldUID }
func (UserID) Field() Field    { return FieldUserID }
func (SessionID) Field() Field { return FieldSessionID }
func (RawValue) Field() Field  { return FieldInvalid }

func (v Usage) Raw() int32     { return int32(v) }
func (v Source) Raw() int32    { return int32(v) }
func (v UID) Raw() int32       { return int32(v) }
func (v UserID) Raw() int32    { return int32(v) }
func (v SessionID) Raw() int32 { return int32(v) }
func (v RawValue) Raw() int32  { return v.Value }

func (Usage) isValue()     {}
func (Source) isValue()    {}
func (UID) isValue()       {}
func (UserID) isValue()    {}
func (SessionID) isValue() {}
func (RawValue) isValue()  {}

// Criterion is an atomic rule on one stream attribute with match or exclude
// polarity.
type Criterion struct {
	Value   Value
	Exclude bool
}

// CriterionFromRule builds a criterion from its wire representation. No
// validation is performed; a rule without a single known field bit yields a
// RawValue criterion.
func CriterionFromRule(rule Rule, raw int32) Criterion {
	c := Criterion{Exclude: rule.IsExclusion()}
	switch rule.Field() {
	case FieldUsage:
		c.Value = Usage(raw)
	case FieldCapturePreset:
		c.Value = Source(raw)
	case FieldUID:
		c.Value = UID(uint32(raw))
	case FieldUserID:
		c.Value = UserID(raw)
	case FieldSessionID:
		c.Value = SessionID(raw)
	default:
		c.Value = RawValue{Rule: rule &^ RuleExclusionMask, Value: raw}
	}
	return c
}

// Field returns the stream attribute addressed by the criterion.
func (c Criterion) Field() Field {
	if c.Value == nil {
		return FieldInvalid
	}
	return c.Value.Field()
}

// IsExcludeCriterion reports whether a stream must NOT match this criterion.
func (c Criterion) IsExcludeCriterion() bool {
	return c.Rule().IsExclusion()
}

// Rule returns the wire rule kind.
func (c Criterion) Rule() Rule {
	if rv, ok := c.Value.(RawValue); ok {
		if c.Exclude {
			return rv.Rule | RuleExclusionMask
		}
		return rv.Rule
	}
	rule := Rule(c.Field())
	if c.Exclude {
		rule |= RuleExclusionMask
	}
	return rule
}

// RawValue returns the wire value slot.
func (c Criterion) RawValue() int32 {
	if c.Value == nil {
		return 0
	}
	return c.Value.Raw()
}

// WellFormed reports whether the criterion addresses exactly one known field.
func (c Criterion) WellFormed() bool {
	return c.Field() != FieldInvalid
}

// String renders the criterion for logs, e.g. "exclude usage=alarm".
func (c Criterion) String() string {
	polarity := "match"
	if c.Exclude {
		polarity = "exclude"
	}
	if c.Value == nil {
		return polarity + " <nil>"
	}
	if rv, ok := c.Value.(RawValue); ok {
		return fmt.Sprintf("%s rule=%#x value=%d", polarity, uint32(rv.Rule), rv.Value)
	}
	return fmt.Sprintf("%s %s=%v", polarity, c.Field(), c.Value)
}

func MatchUsage(u Usage) Criterion         { return Criterion{Value: u} }
func ExcludeUsage(u Usage) Criterion       { return Criterion{Value: u, Exclude: true} }
func MatchSource(s Source) Criterion       { return Criterion{Value: s} }
func ExcludeSource(s Source) Criterion     { return Criterion{Value: s, Exclude: true} }
func MatchUID(uid UID) Criterion           { return Criterion{Value: uid} }
func ExcludeUID(uid UID) Criterion         { return Criterion{Value: uid, Exclude: true} }
func MatchUserID(id UserID) Criterion      { return Criterion{Value: id} }
func ExcludeUserID(id UserID) Criterion    { return Criterion{Value: id, Exclude: true} }
func MatchSession(s SessionID) Criterion   { return Criterion{Value: s} }
func ExcludeSession(s SessionID) Criterion { return Criterion{Value: s, Exclude: true} }
