package mix

import "testing"

func TestCriterionRule(t *testing.T) {
	tests := []struct {
		name        string
		criterion   Criterion
		wantRule    Rule
		wantField   Field
		wantExclude bool
	}{
		{"match usage", MatchUsage(UsageMedia), RuleMatchUsage, FieldUsage, false},
		{"exclude usage", ExcludeUsage(UsageAlarm), RuleExcludeUsage, FieldUsage, true},
		{"match source", MatchSource(SourceMic), RuleMatchCapturePreset, FieldCapturePreset, false},
		{"exclude source", ExcludeSource(SourceHotword), RuleExcludeCapturePreset, FieldCapturePreset, true},
		{"match uid", MatchUID(1000), RuleMatchUID, FieldUID, false},
		{"exclude uid", ExcludeUID(1000), RuleExcludeUID, FieldUID, true},
		{"match user id", MatchUserID(10), RuleMatchUserID, FieldUserID, false},
		{"exclude user id", ExcludeUserID(10), RuleExcludeUserID, FieldUserID, true},
		{"match session", MatchSession(42), RuleMatchSessionID, FieldSessionID, false},
		{"exclude session", ExcludeSession(42), RuleExcludeSessionID, FieldSessionID, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.criterion.Rule(); got != tt.wantRule {
				t.Errorf("Rule() = %#x, want %#x", got, tt.wantRule)
			}
			if got := tt.criterion.Field(); got != tt.wantField {
				t.Errorf("Field() = %v, want %v", got, tt.wantField)
			}
			if got := tt.criterion.IsExcludeCriterion(); got != tt.wantExclude {
				t.Errorf("IsExcludeCriterion() = %v, want %v", got, tt.wantExclude)
			}
			if !tt.criterion.WellFormed() {
				t.Error("WellFormed() = false, want true")
			}
		})
	}
}

func TestCriterionFromRule(t *testing.T) {
	tests := []struct {
		name      string
		rule      Rule
		raw       int32
		wantValue Value
		wantField Field
	}{
		{"usage", RuleMatchUsage, 4, Usage(4), FieldUsage},
		{"excluded capture preset", RuleExcludeCapturePreset, 6, Source(6), FieldCapturePreset},
		{"uid keeps unsigned bits", RuleMatchUID, -1, UID(0xFFFFFFFF), FieldUID},
		{"user id", RuleExcludeUserID, 10, UserID(10), FieldUserID},
		{"session", RuleMatchSessionID, 77, SessionID(77), FieldSessionID},
		{"out of range usage accepted", RuleMatchUsage, 9999, Usage(9999), FieldUsage},
		{"two field bits", Rule(FieldUsage | FieldUID), 1, RawValue{Rule: Rule(FieldUsage | FieldUID), Value: 1}, FieldInvalid},
		{"no field bits", RuleExclusionMask, 3, RawValue{Rule: 0, Value: 3}, FieldInvalid},
		{"unknown bit", Rule(0x40), 3, RawValue{Rule: 0x40, Value: 3}, FieldInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CriterionFromRule(tt.rule, tt.raw)
			if c.Value != tt.wantValue {
				t.Errorf("Value = %#v, want %#v", c.Value, tt.wantValue)
			}
			if c.Field() != tt.wantField {
				t.Errorf("Field() = %v, want %v", c.Field(), tt.wantField)
			}
			if c.Rule() != tt.rule {
				t.Errorf("Rule() = %#x, want %#x (rule must survive construction)", c.Rule(), tt.rule)
			}
			if c.RawValue() != tt.raw {
				t.Errorf("RawValue() = %d, want %d", c.RawValue(), tt.raw)
			}
			if c.IsExcludeCriterion() != tt.rule.IsExclusion() {
				t.Errorf("IsExcludeCriterion() = %v, want %v", c.IsExcludeCriterion(), tt.rule.IsExclusion())
			}
		})
	}
}

func TestRuleField(t *testing.T) {
	tests := []struct {
		rule Rule
		want Field
	}{
		{RuleMatchUsage, FieldUsage},
		{RuleExcludeSessionID, FieldSessionID},
		{Rule(0), FieldInvalid},
		{Rule(0x3), FieldInvalid},
		{Rule(0x20), FieldInvalid},
		{Rule(0x4000 | 0x1), FieldInvalid},
	}

	for _, tt := range tests {
		if got := tt.rule.Field(); got != tt.want {
			t.Errorf("Rule(%#x).Field() = %v, want %v", uint32(tt.rule), got, tt.want)
		}
	}
}

func TestWireConstants(t *testing.T) {
	checks := []struct {
		name string
		got  int64
		want int64
	}{
		{"exclusion mask", int64(RuleExclusionMask), 0x8000},
		{"usage", int64(RuleMatchUsage), 0x1},
		{"capture preset", int64(RuleMatchCapturePreset), 0x2},
		{"uid", int64(RuleMatchUID), 0x4},
		{"user id", int64(RuleMatchUserID), 0x8},
		{"session", int64(RuleMatchSessionID), 0x10},
		{"type invalid", int64(TypeInvalid), -1},
		{"type players", int64(TypePlayers), 0},
		{"type recorders", int64(TypeRecorders), 1},
		{"state disabled", int64(StateDisabled), -1},
		{"state idle", int64(StateIdle), 0},
		{"state mixing", int64(StateMixing), 1},
		{"route render", int64(RouteRender), 0x1},
		{"route loop back", int64(RouteLoopBack), 0x2},
		{"route disallow preferred", int64(RouteDisallowsPreferredDevice), 0x4},
		{"notify activity", int64(CallbackNotifyActivity), 0x1},
		{"max criteria", MaxCriteriaPerMix, 20},
		{"max mixes", MaxMixesPerPolicy, 50},
	}

	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %#x, want %#x", c.name, c.got, c.want)
		}
	}
}
