package server

import (
	"fmt"

	"mercator-hq/mixpolicy/pkg/policy/engine"
	"mercator-hq/mixpolicy/pkg/policy/manager"
	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// TokenHeader carries the owner token of mix requests.
const TokenHeader = "X-Mix-Token"

// SnapshotDigestHeader carries the hex digest of a served snapshot.
const SnapshotDigestHeader = "X-Snapshot-Digest"

// SessionResponse is returned when an owner token is issued.
type SessionResponse struct {
	Token string `json:"token"`
}

// CloseSessionResponse is returned when an owner token is invalidated.
type CloseSessionResponse struct {
	RemovedMixes int `json:"removed_mixes"`
}

// RegisterResponse lists the registration ids of registered mixes.
type RegisterResponse struct {
	RegistrationIDs []string `json:"registration_ids"`
}

// MixSummary describes a registered mix. Owner tokens are never exposed.
type MixSummary struct {
	RegistrationID string   `json:"registration_id"`
	Type           string   `json:"type"`
	DeviceType     string   `json:"device_type"`
	RouteFlags     uint32   `json:"route_flags"`
	CallbackFlags  uint32   `json:"callback_flags"`
	Criteria       []string `json:"criteria"`
	State          string   `json:"state"`
	FromFile       bool     `json:"from_file"`
}

// MixListResponse lists the registered mixes in registration order.
type MixListResponse struct {
	Generation uint64       `json:"generation"`
	Mixes      []MixSummary `json:"mixes"`
}

// EventsResponse carries drained activity events.
type EventsResponse struct {
	Events []manager.ActivityEvent `json:"events"`
}

// StreamRequest describes a candidate stream. Usage and Source accept a
// name ("media", "remote_submix") or a decimal code. UserID defaults to the
// user id derived from UID.
type StreamRequest struct {
	Class     string `json:"class"`
	Usage     string `json:"usage,omitempty"`
	Source    string `json:"source,omitempty"`
	UID       uint32 `json:"uid"`
	UserID    *int32 `json:"user_id,omitempty"`
	SessionID int32  `json:"session_id"`
}

// Stream converts the request into a stream. Errors wrap
// mix.ErrMalformedInput.
func (req StreamRequest) Stream() (mix.Stream, error) {
	class, ok := mix.ParseStreamClass(req.Class)
	if !ok {
		return mix.Stream{}, fmt.Errorf("%w: unknown stream class %q", mix.ErrMalformedInput, req.Class)
	}

	uid := mix.UID(req.UID)
	session := mix.SessionID(req.SessionID)

	if class == mix.StreamCapture {
		var source mix.Source
		if req.Source != "" {
			if source, ok = mix.ParseSource(req.Source); !ok {
				return mix.Stream{}, fmt.Errorf("%w: unknown source %q", mix.ErrMalformedInput, req.Source)
			}
		}
		return req.owner(mix.NewCaptureStream(source, uid, session)), nil
	}

	var usage mix.Usage
	if req.Usage != "" {
		if usage, ok = mix.ParseUsage(req.Usage); !ok {
			return mix.Stream{}, fmt.Errorf("%w: unknown usage %q", mix.ErrMalformedInput, req.Usage)
		}
	}
	return req.owner(mix.NewPlaybackStream(usage, uid, session)), nil
}

func (req StreamRequest) owner(s mix.Stream) mix.Stream {
	if req.UserID == nil {
		return s
	}
	return s.WithUserID(mix.UserID(*req.UserID))
}

// StreamResponse is returned when a stream starts.
type StreamResponse struct {
	Handle   string          `json:"handle"`
	Decision engine.Decision `json:"decision"`
}
