// Package mix defines the data model of the dynamic audio mix policy: match
// criteria, mixes, candidate streams and the numeric constants that form the
// wire contract shared with remote registrants.
//
// # Criteria
//
// A Criterion is one atomic test on a single stream attribute. Its value is a
// tagged variant (Usage, Source, UID, UserID, SessionID) so the addressed field
// is always known from the value itself:
//
//	c := mix.ExcludeUsage(mix.UsageAlarm)
//	c.Field()              // mix.FieldUsage
//	c.IsExcludeCriterion() // true
//	c.Rule()               // 0x8001 on the wire
//
// Wire values are translated with CriterionFromRule, which never validates.
// A rule whose field bits are not one-hot produces a RawValue that never
// matches; registries reject such criteria at insertion time.
//
// # Mixes
//
// A Mix bundles an ordered list of criteria with routing metadata. Setters for
// the UID and user id fields keep at most one criterion of that field:
//
//	m := &mix.Mix{Type: mix.TypePlayers, RegistrationID: "submix-0"}
//	m.SetExcludeUID(7)
//	m.SetMatchUID(7)
//	m.HasUIDRule(true, 7) // true, one UID criterion remains
//
// # Constants
//
// Rule bits, mix types, mix states, route flags, callback flags and the
// capacity limits are numerically stable across processes and must not be
// renumbered.
package mix
