package mix

// Field selects the stream attribute a criterion addresses. The values are the
// one-hot field bits of the wire rule kind.
type Field uint32

const (
	// FieldInvalid marks a rule whose field bits are not exactly one known bit.
	FieldInvalid Field = 0

	FieldUsage         Field = 0x1
	FieldCapturePreset Field = 0x1 << 1
	FieldUID           Field = 0x1 << 2
	FieldUserID        Field = 0x1 << 3
	FieldSessionID     Field = 0x1 << 4
)

// Rule is the wire rule kind: one field bit optionally combined with
// RuleExclusionMask.
type Rule uint32

const (
	// RuleExclusionMask flags a criterion the stream must NOT match.
	RuleExclusionMask Rule = 0x8000

	// ruleFieldMask covers every bit that may address a field.
	ruleFieldMask Rule = 0x1F

	RuleMatchUsage         = Rule(FieldUsage)
	RuleMatchCapturePreset = Rule(FieldCapturePreset)
	RuleMatchUID           = Rule(FieldUID)
	RuleMatchUserID        = Rule(FieldUserID)
	RuleMatchSessionID     = Rule(FieldSessionID)

	RuleExcludeUsage         = RuleExclusionMask | RuleMatchUsage
	RuleExcludeCapturePreset = RuleExclusionMask | RuleMatchCapturePreset
	RuleExcludeUID           = RuleExclusionMask | RuleMatchUID
	RuleExcludeUserID        = RuleExclusionMask | RuleMatchUserID
	RuleExcludeSessionID     = RuleExclusionMask | RuleMatchSessionID
)

// IsExclusion reports whether the exclusion bit is set.
func (r Rule) IsExclusion() bool {
	return r&RuleExclusionMask == RuleExclusionMask
}

// Field returns the addressed field, or FieldInvalid when the rule does not
// carry exactly one known field bit or carries unknown bits.
func (r Rule) Field() Field {
	if r&^(ruleFieldMask|RuleExclusionMask) != 0 {
		return FieldInvalid
	}
	switch f := Field(r & ruleFieldMask); f {
	case FieldUsage, FieldCapturePreset, FieldUID, FieldUserID, FieldSessionID:
		return f
	default:
		return FieldInvalid
	}
}

// String returns the configuration name of the field.
func (f Field) String() string {
	switch f {
	case FieldUsage:
		return "usage"
	case FieldCapturePreset:
		return "capture_preset"
	case FieldUID:
		return "uid"
	case FieldUserID:
		return "user_id"
	case FieldSessionID:
		return "session_id"
	default:
		return "invalid"
	}
}

// ParseField parses a configuration field name.
func ParseField(s string) (Field, bool) {
	switch s {
	case "usage":
		return FieldUsage, true
	case "capture_preset", "source":
		return FieldCapturePreset, true
	case "uid":
		return FieldUID, true
	case "user_id", "userid":
		return FieldUserID, true
	case "session_id", "session":
		return FieldSessionID, true
	default:
		return FieldInvalid, false
	}
}

// Type determines which stream class a mix evaluates.
type Type int32

const (
	TypeInvalid   Type = -1
	TypePlayers   Type = 0
	TypeRecorders Type = 1
)

// Accepts reports whether streams of class c are evaluated by mixes of type t.
func (t Type) Accepts(c StreamClass) bool {
	switch t {
	case TypePlayers:
		return c == StreamPlayback
	case TypeRecorders:
		return c == StreamCapture
	default:
		return false
	}
}

// String returns the configuration name of the mix type.
func (t Type) String() string {
	switch t {
	case TypePlayers:
		return "players"
	case TypeRecorders:
		return "recorders"
	default:
		return "invalid"
	}
}

// ParseType parses a configuration mix type name.
func ParseType(s string) (Type, bool) {
	switch s {
	case "players", "player", "playback":
		return TypePlayers, true
	case "recorders", "recorder", "capture":
		return TypeRecorders, true
	default:
		return TypeInvalid, false
	}
}

// State is the activity state reported for a mix.
type State int32

const (
	StateDisabled State = -1
	StateIdle     State = 0
	StateMixing   State = 1
)

// String returns a lowercase state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMixing:
		return "mixing"
	default:
		return "disabled"
	}
}

// RouteFlags controls where the audio of a mix goes.
type RouteFlags uint32

const (
	// RouteRender controls to which device the audio is rendered.
	RouteRender RouteFlags = 0x1
	// RouteLoopBack loops the audio back instead of rendering it.
	RouteLoopBack RouteFlags = 0x1 << 1
	// RouteLoopBackAndRender loops the audio back while it is rendered.
	RouteLoopBackAndRender = RouteRender | RouteLoopBack
	// RouteDisallowsPreferredDevice prevents preferred device routing.
	RouteDisallowsPreferredDevice RouteFlags = 0x1 << 2

	RouteAll = RouteRender | RouteLoopBack | RouteDisallowsPreferredDevice
)

// IsLoopBack reports whether the loop-back bit is set.
func (f RouteFlags) IsLoopBack() bool {
	return f&RouteLoopBack == RouteLoopBack
}

// IsLoopBackRender reports whether both loop-back and render are set.
func (f RouteFlags) IsLoopBackRender() bool {
	return f&RouteLoopBackAndRender == RouteLoopBackAndRender
}

// DisallowsPreferredDevice reports whether preferred device routing is disabled.
func (f RouteFlags) DisallowsPreferredDevice() bool {
	return f&RouteDisallowsPreferredDevice == RouteDisallowsPreferredDevice
}

// Valid reports whether only known route bits are set.
func (f RouteFlags) Valid() bool {
	return f&^RouteAll == 0
}

// ParseRouteFlag parses a single configuration route flag name.
func ParseRouteFlag(s string) (RouteFlags, bool) {
	switch s {
	case "render":
		return RouteRender, true
	case "loop_back", "loopback":
		return RouteLoopBack, true
	case "loop_back_and_render", "loopback_render":
		return RouteLoopBackAndRender, true
	case "disallows_preferred_device", "disallow_preferred_device":
		return RouteDisallowsPreferredDevice, true
	default:
		return 0, false
	}
}

// CallbackFlags selects the asynchronous notifications a registrant wants.
type CallbackFlags uint32

// CallbackNotifyActivity requests idle/mixing/disabled transition reports.
const CallbackNotifyActivity CallbackFlags = 0x1

// NotifiesActivity reports whether activity notifications were requested.
func (f CallbackFlags) NotifiesActivity() bool {
	return f&CallbackNotifyActivity != 0
}

// DynamicPolicyEvent is the event code of a dynamic policy callback.
type DynamicPolicyEvent int32

// DynamicPolicyEventMixStateUpdate reports a mix state transition.
const DynamicPolicyEventMixStateUpdate DynamicPolicyEvent = 0

// RecordConfigEvent is the event code of a recording configuration update.
type RecordConfigEvent int32

const (
	// RecordConfigEventNone marks playback decisions, which have no
	// recording configuration.
	RecordConfigEventNone   RecordConfigEvent = -1
	RecordConfigEventStart  RecordConfigEvent = 0
	RecordConfigEventStop   RecordConfigEvent = 1
	RecordConfigEventUpdate RecordConfigEvent = 2
)

// String returns a lowercase event name.
func (e RecordConfigEvent) String() string {
	switch e {
	case RecordConfigEventNone:
		return "none"
	case RecordConfigEventStart:
		return "start"
	case RecordConfigEventStop:
		return "stop"
	case RecordConfigEventUpdate:
		return "update"
	default:
		return "unknown"
	}
}

// Capacity limits of the wire contract.
const (
	MaxMixesPerPolicy = 50
	MaxCriteriaPerMix = 20
)
