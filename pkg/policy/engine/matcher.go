package engine

import "mercator-hq/mixpolicy/pkg/policy/mix"

// Matches reports whether stream s belongs to mix m.
func Matches(m *mix.Mix, s mix.Stream) bool {
	if !m.Type.Accepts(s.Class) {
		return false
	}

	// required and satisfied are sets of field bits.
	var required, satisfied mix.Field
	for _, c := range m.Criteria {
		field := c.Field()
		if field == mix.FieldInvalid {
			// An ill-formed inclusion can never be satisfied.
			if !c.Exclude {
				return false
			}
			continue
		}

		value, ok := s.Attribute(field)
		equal := ok && value == c.RawValue()

		if c.Exclude {
			if equal {
				return false
			}
			continue
		}

		required |= field
		if equal {
			satisfied |= field
		}
	}

	return required&^satisfied == 0
}
