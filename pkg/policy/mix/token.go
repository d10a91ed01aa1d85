package mix

import (
	"fmt"

	"github.com/google/uuid"
)

// Token is an opaque capability identifying the cross-process owner of a mix.
// Only equality is meaningful; the zero Token identifies no owner.
type Token struct {
	id uuid.UUID
}

// NewToken returns a fresh random token.
func NewToken() Token {
	return Token{id: uuid.New()}
}

// ParseToken parses the textual form produced by Token.String.
func ParseToken(s string) (Token, error) {
	id, err := uuid.Parse(s)
	if err != nil {
		return Token{}, fmt.Errorf("parse token %q: %w", s, err)
	}
	return Token{id: id}, nil
}

// IsZero reports whether the token identifies no owner.
func (t Token) IsZero() bool {
	return t.id == uuid.Nil
}

// String returns the canonical textual form.
func (t Token) String() string {
	return t.id.String()
}

// MarshalText implements encoding.TextMarshaler.
func (t Token) MarshalText() ([]byte, error) {
	return []byte(t.id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Token) UnmarshalText(b []byte) error {
	parsed, err := ParseToken(string(b))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
