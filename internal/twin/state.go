package twin

import (
	"sort"
	"time"

	"github.com/twinlab/twinrt/internal/value"
)

// State is the persisted projection of a twin (§3). Iteration over
// Properties by a caller must go through SortedKeys, never Go's native
// map ranging, so snapshots and renderings stay deterministic.
type State struct {
	ID             ID
	ClassName      string
	Properties     map[string]value.Value
	ParentID       *ID
	CreatedAt      time.Time
	UpdatedAt      time.Time
	IsHypothetical bool
	SimulationTime *time.Time
	Destroyed      bool
}

// SortedKeys returns the property keys of s in ascending order, which is
// the iteration order snapshots and GetAllProperties use to stay
// deterministic (§3).
func (s *State) SortedKeys() []string {
	keys := make([]string, 0, len(s.Properties))
	for k := range s.Properties {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CloneProperties returns a shallow copy of s.Properties, suitable for
// handing to a new twin (clone) or to a caller that must not be able to
// mutate the original map through the returned reference.
func (s *State) CloneProperties() map[string]value.Value {
	cp := make(map[string]value.Value, len(s.Properties))
	for k, v := range s.Properties {
		cp[k] = v
	}
	return cp
}
