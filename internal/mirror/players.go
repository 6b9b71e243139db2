package mirror

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"

	"grimoire/internal/domain"
)

// confidenceFloor is the minimum similarity for a fuzzy player-name
// match, where similarity is 1 - distance/longerNameLength. Below it a
// name is treated as a new player rather than a misspelling.
const confidenceFloor = 0.72

type playerCandidate struct {
	in         *domain.Instance
	confidence float64
}

// resolvePlayer finds the player an event refers to: exact instance id,
// then exact case-insensitive name, then the best levenshtein candidate
// above the confidence floor
func (m *Mirror) resolvePlayer(id, name string) (*domain.Instance, bool) {
	if id != "" {
		if in, ok := m.kb.GetInstance(id); ok && in.Class() == ClassPlayer {
			return in, true
		}
	}
	if name == "" {
		return nil, false
	}
	players := m.kb.GetInstancesByClass(ClassPlayer)
	lower := strings.ToLower(name)
	for _, p := range players {
		if strings.ToLower(p.GetString("name")) == lower {
			return p, true
		}
	}

	candidates := make([]playerCandidate, 0, len(players))
	for _, p := range players {
		pname := strings.ToLower(p.GetString("name"))
		if pname == "" {
			continue
		}
		longest := utf8.RuneCountInString(lower)
		if n := utf8.RuneCountInString(pname); n > longest {
			longest = n
		}
		if longest == 0 {
			continue
		}
		dist := levenshtein.ComputeDistance(lower, pname)
		confidence := 1 - float64(dist)/float64(longest)
		if confidence >= confidenceFloor {
			candidates = append(candidates, playerCandidate{in: p, confidence: confidence})
		}
	}
	if len(candidates) == 0 {
		return nil, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].confidence != candidates[j].confidence {
			return candidates[i].confidence > candidates[j].confidence
		}
		return candidates[i].in.ID() < candidates[j].in.ID()
	})
	return candidates[0].in, true
}
