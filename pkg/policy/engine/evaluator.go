package engine

import (
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/mixpolicy/pkg/policy/mix"
)

// Outcome labels of an evaluation.
const (
	OutcomeMatch     = "match"
	OutcomeNoMatch   = "no_match"
	OutcomeAmbiguous = "ambiguous"
)

// Recorder receives evaluation telemetry.
type Recorder interface {
	RecordEvaluation(class mix.StreamClass, outcome string, duration time.Duration)
}

// Decision is the routing decision for one stream. The zero Decision means
// default routing.
type Decision struct {
	Matched        bool           `json:"matched"`
	RegistrationID string         `json:"registration_id,omitempty"`
	MixType        mix.Type       `json:"mix_type"`
	DeviceType     mix.DeviceType `json:"device_type"`
	DeviceAddress  string         `json:"device_address,omitempty"`
	RouteFlags     mix.RouteFlags `json:"route_flags"`

	// Ambiguous is set when more than one mix matched.
	Ambiguous bool `json:"ambiguous,omitempty"`
	// Candidates lists every matching registration id in registration order.
	Candidates []string `json:"candidates,omitempty"`
}

// Evaluator selects the mix a stream is routed to.
type Evaluator struct {
	logger   *slog.Logger
	recorder Recorder
}

// NewEvaluator creates an evaluator. recorder may be nil.
func NewEvaluator(logger *slog.Logger, recorder Recorder) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		logger:   logger.With("component", "policy.engine"),
		recorder: recorder,
	}
}

// Evaluate returns the decision for s given mixes in registration order.
func (e *Evaluator) Evaluate(mixes []*mix.Mix, s mix.Stream) Decision {
	start := time.Now()

	var (
		decision Decision
		first    *mix.Mix
	)
	for _, m := range mixes {
		if !Matches(m, s) {
			continue
		}
		if first == nil {
			first = m
		}
		decision.Candidates = append(decision.Candidates, m.RegistrationID)
	}

	outcome := OutcomeNoMatch
	if first != nil {
		decision.Matched = true
		decision.RegistrationID = first.RegistrationID
		decision.MixType = first.Type
		decision.DeviceType = first.DeviceType
		decision.DeviceAddress = first.DeviceAddress()
		decision.RouteFlags = first.RouteFlags
		outcome = OutcomeMatch
	} else {
		decision.MixType = mix.TypeInvalid
	}

	if len(decision.Candidates) > 1 {
		decision.Ambiguous = true
		outcome = OutcomeAmbiguous
		e.logger.Warn("stream matched several mixes, using first registered",
			"error", fmt.Errorf("%w: %d candidates", mix.ErrAmbiguousMatch, len(decision.Candidates)),
			"class", s.Class.String(),
			"selected", first.RegistrationID,
			"candidates", decision.Candidates,
		)
	}

	e.logger.Debug("stream evaluated",
		"class", s.Class.String(),
		"usage", int32(s.Usage),
		"source", int32(s.Source),
		"uid", uint32(s.UID),
		"session", int32(s.SessionID),
		"outcome", outcome,
		"registration_id", decision.RegistrationID,
	)

	if e.recorder != nil {
		e.recorder.RecordEvaluation(s.Class, outcome, time.Since(start))
	}

	return decision
}
