// SPDX-License-Identifier: MIT
// Kenzy - A distributed voice assistant fabric for your home
// The source code is available at <https://github.com/lnxusr1/kenzy>

package skills

import (
	"strings"
)

// Intent is one match produced by the intent engine.
type Intent struct {
	Name       string
	Confidence float64
	Entities   map[string]string
}

// Matcher is the surface the skill manager expects from an intent
// engine. The built-in phrase matcher below stands in for a trained
// NLU model; richer engines plug in through this interface.
type Matcher interface {
	AddIntent(name string, phrases []string) error
	AddEntity(name string, values []string) error
	Train() error
	Match(text string) (Intent, bool)
}

type phraseIntent struct {
	name    string
	phrases [][]string
}

// PhraseMatcher matches normalized utterances against registered
// phrase templates. Tokens of the form {slot} capture one or more
// words into the intent's entities; a registered entity list restricts
// what a slot of that name may capture.
type PhraseMatcher struct {
	intents  []phraseIntent
	entities map[string][]string
}

// NewPhraseMatcher creates an empty matcher.
func NewPhraseMatcher() *PhraseMatcher {
	return &PhraseMatcher{entities: map[string][]string{}}
}

// AddIntent registers phrase templates under an intent name.
func (m *PhraseMatcher) AddIntent(name string, phrases []string) error {
	intent := phraseIntent{name: name}
	for _, phrase := range phrases {
		tokens := strings.Fields(normalize(phrase))
		if len(tokens) == 0 {
			continue
		}
		intent.phrases = append(intent.phrases, tokens)
	}
	m.intents = append(m.intents, intent)
	return nil
}

// AddEntity registers the accepted values for a named slot.
func (m *PhraseMatcher) AddEntity(name string, values []string) error {
	normalized := make([]string, 0, len(values))
	for _, value := range values {
		normalized = append(normalized, normalize(value))
	}
	m.entities[name] = normalized
	return nil
}

// Train is a no-op for the phrase matcher; it exists so trained
// engines can hook model compilation here.
func (m *PhraseMatcher) Train() error { return nil }

// Match scores the utterance against every registered template and
// returns the best hit.
func (m *PhraseMatcher) Match(text string) (Intent, bool) {
	words := strings.Fields(normalize(text))
	best := Intent{}
	found := false
	for _, intent := range m.intents {
		for _, tokens := range intent.phrases {
			entities, ok := m.matchTokens(tokens, words)
			if !ok {
				continue
			}
			confidence := 1.0
			if len(entities) > 0 {
				confidence = 0.9
			}
			if !found || confidence > best.Confidence {
				best = Intent{Name: intent.name, Confidence: confidence, Entities: entities}
				found = true
			}
		}
	}
	return best, found
}

func (m *PhraseMatcher) matchTokens(tokens, words []string) (map[string]string, bool) {
	entities := map[string]string{}
	ti, wi := 0, 0
	for ti < len(tokens) {
		token := tokens[ti]
		if strings.HasPrefix(token, "{") && strings.HasSuffix(token, "}") {
			slot := strings.Trim(token, "{}")
			// A slot greedily captures words until the next literal
			// token matches.
			var captured []string
			var next string
			if ti+1 < len(tokens) {
				next = tokens[ti+1]
			}
			for wi < len(words) && (next == "" || words[wi] != next) {
				captured = append(captured, words[wi])
				wi++
			}
			if len(captured) == 0 {
				return nil, false
			}
			value := strings.Join(captured, " ")
			if accepted, limited := m.entities[slot]; limited && !contains(accepted, value) {
				return nil, false
			}
			entities[slot] = value
			ti++
			continue
		}
		if wi >= len(words) || words[wi] != token {
			return nil, false
		}
		ti++
		wi++
	}
	if wi != len(words) {
		return nil, false
	}
	return entities, true
}

func contains(values []string, value string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}

// normalize lower-cases an utterance and strips punctuation the way
// the wake gate expects.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == ' ':
			b.WriteRune(r)
		case r == '\'':
			// drop apostrophes entirely: "what's" -> "whats"
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
