// Package engine evaluates candidate streams against the registered mixes.
//
// Evaluation is a pure function of the stream attributes and a consistent
// view of the registry:
//
//	Stream{class, usage|source, uid, user id, session}
//	       ↓
//	For each mix in registration order:
//	  mix type accepts the stream class?      no → skip
//	  any exclusion criterion equals stream?  yes → reject
//	  every field with inclusion criteria has
//	  at least one equal to the stream?       no → reject
//	       ↓
//	Decision (first matching mix, or default routing)
//
// Fields without criteria impose no constraint, so a mix with no criteria
// matches every stream of its class. When several mixes match, the first
// registered wins; the decision is flagged Ambiguous and a warning wrapping
// mix.ErrAmbiguousMatch is logged. Evaluation never fails.
//
// # Basic Usage
//
//	ev := engine.NewEvaluator(logger, collector)
//	registry.View(func(mixes []*mix.Mix) {
//	    decision = ev.Evaluate(mixes, mix.NewPlaybackStream(mix.UsageMedia, 10123, 7))
//	})
//	if decision.Matched {
//	    route(decision.DeviceType, decision.DeviceAddress, decision.RouteFlags)
//	}
package engine
