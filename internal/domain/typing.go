package domain

type TypingScope string

const (
	ScopePublic  TypingScope = "public"
	ScopePrivate TypingScope = "private"
)

func (s TypingScope) Valid() bool {
	return s == ScopePublic || s == ScopePrivate
}
