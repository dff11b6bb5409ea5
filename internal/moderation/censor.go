package moderation

import (
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

// Censor masks configured words in chat content. Matching is case
// insensitive, ignores punctuation inside words and undoes common leet
// substitutions; only whole words are masked.
type Censor struct {
	machine *goahocorasick.Machine
	mask    rune
}

// NewCensor builds the automaton. With no words the censor passes content
// through unchanged.
func NewCensor(words []string, mask rune) (*Censor, error) {
	patterns := make([][]rune, 0, len(words))
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		p := []rune(strings.TrimSpace(w))
		folded := make([]rune, 0, len(p))
		for _, r := range p {
			if r, ok := fold(r); ok {
				folded = append(folded, r)
			}
		}
		if _, dup := seen[string(folded)]; dup || len(folded) == 0 {
			continue
		}
		seen[string(folded)] = struct{}{}
		patterns = append(patterns, folded)
	}
	c := &Censor{mask: mask}
	if len(patterns) == 0 {
		return c, nil
	}
	m := new(goahocorasick.Machine)
	if err := m.Build(patterns); err != nil {
		return nil, err
	}
	c.machine = m
	return c, nil
}

// Apply returns content with every censored word replaced by the mask rune.
func (c *Censor) Apply(content string) string {
	if c == nil || c.machine == nil || content == "" {
		return content
	}

	orig := []rune(content)
	folded := make([]rune, 0, len(orig))
	pos := make([]int, 0, len(orig)) // folded index -> orig index
	for i, r := range orig {
		if unicode.IsSpace(r) {
			folded = append(folded, ' ')
			pos = append(pos, i)
			continue
		}
		if f, ok := fold(r); ok {
			folded = append(folded, f)
			pos = append(pos, i)
		}
	}

	terms := c.machine.MultiPatternSearch(folded, false)
	if len(terms) == 0 {
		return content
	}
	changed := false
	for _, t := range terms {
		start, end := t.Pos, t.Pos+len(t.Word)
		if start < 0 || end > len(folded) || !boundary(folded, start-1) || !boundary(folded, end) {
			continue
		}
		for i := pos[start]; i <= pos[end-1]; i++ {
			if !unicode.IsSpace(orig[i]) {
				orig[i] = c.mask
			}
		}
		changed = true
	}
	if !changed {
		return content
	}
	return string(orig)
}

func boundary(folded []rune, i int) bool {
	return i < 0 || i >= len(folded) || folded[i] == ' '
}

// fold lowercases r and maps leet digits and symbols to letters. Punctuation
// and other symbols are dropped.
func fold(r rune) (rune, bool) {
	switch r {
	case '4', '@':
		return 'a', true
	case '3':
		return 'e', true
	case '1', '!':
		return 'i', true
	case '0':
		return 'o', true
	case '5', '$':
		return 's', true
	case '7':
		return 't', true
	}
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return unicode.ToLower(r), true
	}
	return 0, false
}
