package mix

// StreamClass distinguishes playback streams from capture streams.
type StreamClass int

const (
	StreamPlayback StreamClass = iota
	StreamCapture
)

// String returns a lowercase class name.
func (c StreamClass) String() string {
	if c == StreamCapture {
		return "capture"
	}
	return "playback"
}

// ParseStreamClass parses a class name.
func ParseStreamClass(s string) (StreamClass, bool) {
	switch s {
	case "playback", "player", "players":
		return StreamPlayback, true
	case "capture", "recorder", "recorders", "record":
		return StreamCapture, true
	default:
		return StreamPlayback, false
	}
}

// perUserRange is the uid range reserved for each user.
const perUserRange = 100000

// UserIDOf returns the user id owning uid.
func UserIDOf(uid UID) UserID {
	return UserID(uid / perUserRange)
}

// Stream is the attribute set of a candidate stream. Usage is meaningful for
// playback streams and Source for capture streams.
type Stream struct {
	Class     StreamClass
	Usage     Usage
	Source    Source
	UID       UID
	UserID    UserID
	SessionID SessionID
}

// NewPlaybackStream returns a playback stream; the user id is derived from uid.
func NewPlaybackStream(usage Usage, uid UID, session SessionID) Stream {
	return Stream{
		Class:     StreamPlayback,
		Usage:     usage,
		UID:       uid,
		UserID:    UserIDOf(uid),
		SessionID: session,
	}
}

// NewCaptureStream returns a capture stream; the user id is derived from uid.
func NewCaptureStream(source Source, uid UID, session SessionID) Stream {
	return Stream{
		Class:     StreamCapture,
		Source:    source,
		UID:       uid,
		UserID:    UserIDOf(uid),
		SessionID: session,
	}
}

// WithUserID returns a copy of s owned by user id. Hosts whose uid layout
// does not follow the per-user range pass the owner explicitly.
func (s Stream) WithUserID(id UserID) Stream {
	s.UserID = id
	return s
}

// Attribute returns the stream's raw value for field f. ok is false when the
// stream class has no such attribute (usage of a capture stream, source of a
// playback stream) or the field is invalid.
func (s Stream) Attribute(f Field) (raw int32, ok bool) {
	switch f {
	case FieldUsage:
		return int32(s.Usage), s.Class == StreamPlayback
	case FieldCapturePreset:
		return int32(s.Source), s.Class == StreamCapture
	case FieldUID:
		return int32(s.UID), true
	case FieldUserID:
		return int32(s.UserID), true
	case FieldSessionID:
		return int32(s.SessionID), true
	default:
		return 0, false
	}
}
