package strategy

import (
	"fmt"
	"math/rand"
)

// Counters tracks one strategy's usage statistics. All counters are
// monotonically non-decreasing within a session.
type Counters struct {
	Uses    int `json:"uses"`
	Success int `json:"success"`
	Fail    int `json:"fail"`
}

// Stats maps strategy name to its counters.
type Stats map[string]*Counters

// Touch returns the counters for a name, creating them on first use.
func (s Stats) Touch(name string) *Counters {
	c, ok := s[name]
	if !ok {
		c = &Counters{}
		s[name] = c
	}
	return c
}

// evolution thresholds: a strategy must have been tried at least minUses
// times and succeeded more often than it failed before it spawns a variant.
const (
	minUses  = 3
	maxLevel = 5
)

// evolvedKeywords are appended to every synthesized variant's keyword
// condition, narrowing it relative to the original.
var evolvedKeywords = []string{"рост", "обучение"}

// Evolve synthesizes a new, more specific strategy for every historically
// successful one. The variant sits one level deeper (capped at maxLevel),
// keeps the trigger topics, annotates the action plan and appends the two
// evolution keywords. The caller merges the result with the existing set and
// rebuilds the tree from scratch.
func Evolve(tree *Tree, stats Stats) []*Strategy {
	var mutated []*Strategy
	for name, c := range stats {
		if c.Uses < minUses || c.Success <= c.Fail {
			continue
		}
		original := tree.Find(name)
		if original == nil {
			continue
		}

		level := original.Level + 1
		if level > maxLevel {
			level = maxLevel
		}
		topics := make([]string, len(original.TriggerTopics))
		copy(topics, original.TriggerTopics)

		keywords := make([]string, 0, len(original.Conditions.Keywords)+len(evolvedKeywords))
		keywords = append(keywords, original.Conditions.Keywords...)
		keywords = append(keywords, evolvedKeywords...)

		mutated = append(mutated, &Strategy{
			Name:          fmt.Sprintf("%s v%d", original.Name, 2+rand.Intn(98)),
			Level:         level,
			TriggerTopics: topics,
			ActionPlan:    original.ActionPlan + " (эволюционировавший)",
			Conditions: Conditions{
				Emotions: copySet(original.Conditions.Emotions),
				Goals:    copySet(original.Conditions.Goals),
				Keywords: keywords,
			},
		})
	}
	return mutated
}

func copySet(src []string) []string {
	if src == nil {
		return nil
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}
