package strategy

import "strings"

// Conditions is an optional structured predicate over agent state. A nil
// slice means the sub-condition is absent and imposes no constraint; a
// non-nil empty slice is present and never satisfiable, mirroring an empty
// permitted set. All present sub-conditions are conjunctive.
type Conditions struct {
	Emotions []string `json:"emotions,omitempty"`
	Goals    []string `json:"goals,omitempty"`
	Keywords []string `json:"keywords,omitempty"`
}

// Strategy is a named rule node pairing an applicability predicate with an
// action description. Children are populated only by the tree builder.
type Strategy struct {
	Name          string     `json:"name"`
	Level         int        `json:"level"`
	TriggerTopics []string   `json:"trigger_topics"`
	ActionPlan    string     `json:"action_plan"`
	Conditions    Conditions `json:"conditions"`
	Children      []*Strategy `json:"children,omitempty"`
}

// minEnergy is the floor below which level-1 strategies stop applying. The
// gate is intentionally asymmetric: deeper levels are not energy-gated.
const minEnergy = 20

// IsApplicable evaluates the strategy against the current agent state and
// thought text.
func (s *Strategy) IsApplicable(emotion, goal, thought string, energy int) bool {
	if s.Level == 1 && energy < minEnergy {
		return false
	}
	if s.Conditions.Emotions != nil && !contains(s.Conditions.Emotions, emotion) {
		return false
	}
	if s.Conditions.Goals != nil && !contains(s.Conditions.Goals, goal) {
		return false
	}
	if s.Conditions.Keywords != nil && !KeywordInText(thought, s.Conditions.Keywords) {
		return false
	}
	if len(s.TriggerTopics) > 0 && !KeywordInText(thought, s.TriggerTopics) {
		return false
	}
	return true
}

// punctuation stripped before keyword matching.
const punctuation = ".,;:!?\"'()-—[]{}"

// Normalize strips punctuation and lowercases text for keyword matching.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(punctuation, r) {
			continue
		}
		b.WriteRune(r)
	}
	return strings.ToLower(b.String())
}

// KeywordInText reports whether any keyword occurs as a substring of the
// normalized text.
func KeywordInText(text string, keywords []string) bool {
	norm := Normalize(text)
	for _, kw := range keywords {
		if strings.Contains(norm, kw) {
			return true
		}
	}
	return false
}

func contains(set []string, v string) bool {
	for _, s := range set {
		if s == v {
			return true
		}
	}
	return false
}
