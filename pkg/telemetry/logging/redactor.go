package logging

import "log/slog"

// visiblePrefix is the number of token characters left readable.
const visiblePrefix = 8

// Redactor masks owner capability tokens. A token grants control over the
// mixes it registered, so only a short prefix is kept for correlation.
type Redactor struct {
	keys map[string]bool
}

// NewRedactor creates a redactor for the default token attribute keys.
func NewRedactor(extraKeys ...string) *Redactor {
	r := &Redactor{keys: map[string]bool{
		"owner": true,
		"token": true,
	}}
	for _, k := range extraKeys {
		r.keys[k] = true
	}
	return r
}

// ReplaceAttr masks string attributes whose key names a token. It matches
// the slog.HandlerOptions.ReplaceAttr signature.
func (r *Redactor) ReplaceAttr(_ []string, a slog.Attr) slog.Attr {
	if !r.keys[a.Key] {
		return a
	}
	v := a.Value.Resolve()
	if v.Kind() != slog.KindString {
		return a
	}
	return slog.String(a.Key, MaskToken(v.String()))
}

// MaskToken keeps the first characters of a token and masks the rest.
func MaskToken(token string) string {
	if len(token) <= visiblePrefix {
		return "***"
	}
	return token[:visiblePrefix] + "***"
}
