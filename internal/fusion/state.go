package fusion

import (
	"fmt"

	"github.com/urbanrisk/floodwatch/internal/domain"
)

// State is the serializable form of a trained fusion model. The fallback
// carries no parameters, so only the mode travels for it.
type State struct {
	Mode  string             `json:"mode"`
	CPT   map[string]float64 `json:"cpt,omitempty"`
	Prior float64            `json:"prior,omitempty"`
}

// Export captures a model into its serializable state.
func Export(m Model) State {
	switch v := m.(type) {
	case *Network:
		return State{Mode: ModeNetwork, CPT: v.CPT, Prior: v.Prior}
	default:
		return State{Mode: ModeFallback}
	}
}

// FromState reconstructs a model from a state bundle, rejecting partial or
// unknown contents.
func FromState(s State) (Model, error) {
	switch s.Mode {
	case ModeNetwork:
		n := &Network{CPT: s.CPT, Prior: s.Prior}
		if err := n.Validate(); err != nil {
			return nil, err
		}
		return n, nil
	case ModeFallback:
		return Fallback{}, nil
	default:
		return nil, fmt.Errorf("%w: unknown fusion mode %q", domain.ErrStateMismatch, s.Mode)
	}
}
