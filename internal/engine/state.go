package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/urbanrisk/floodwatch/internal/classifier"
	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/feature"
	"github.com/urbanrisk/floodwatch/internal/fusion"
	"github.com/urbanrisk/floodwatch/internal/zoning"
)

// stateBundle is the on-disk/at-rest form of a TrainedState. All four
// components travel together; a bundle missing any of them is rejected on
// import rather than patched over the active state.
type stateBundle struct {
	Version   string    `json:"version"`
	TrainedAt time.Time `json:"trained_at"`

	Catalog    *feature.Catalog       `json:"catalog"`
	Classifier *classifier.Classifier `json:"classifier"`
	Zoning     *zoning.Model          `json:"zoning"`
	Fusion     *fusion.State          `json:"fusion"`

	Report domain.TrainingReport `json:"report"`
}

// Export serializes the active trained state as a single JSON bundle.
func (e *Engine) Export() ([]byte, error) {
	s := e.Current()
	if s == nil {
		return nil, ErrNotTrained
	}
	fusionState := fusion.Export(s.Fusion)
	return json.Marshal(stateBundle{
		Version:    s.Version,
		TrainedAt:  s.TrainedAt,
		Catalog:    s.Catalog,
		Classifier: s.Classifier,
		Zoning:     s.Zoning,
		Fusion:     &fusionState,
		Report:     s.Report,
	})
}

// Import deserializes a bundle produced by Export, validates every
// component, and on success atomically activates it. The active state is
// untouched on any error.
func (e *Engine) Import(bundle []byte) error {
	var b stateBundle
	if err := json.Unmarshal(bundle, &b); err != nil {
		return fmt.Errorf("%w: decode bundle: %v", domain.ErrStateMismatch, err)
	}
	if b.Catalog == nil || b.Classifier == nil || b.Zoning == nil || b.Fusion == nil {
		return fmt.Errorf("%w: bundle is missing components", domain.ErrStateMismatch)
	}
	if err := b.Catalog.Validate(); err != nil {
		return fmt.Errorf("%w: catalog: %v", domain.ErrStateMismatch, err)
	}
	if err := b.Classifier.Validate(); err != nil {
		return fmt.Errorf("%w: classifier: %v", domain.ErrStateMismatch, err)
	}
	if err := b.Zoning.Validate(); err != nil {
		return fmt.Errorf("%w: zoning: %v", domain.ErrStateMismatch, err)
	}
	fused, err := fusion.FromState(*b.Fusion)
	if err != nil {
		return err
	}

	e.Swap(&TrainedState{
		Version:    b.Version,
		TrainedAt:  b.TrainedAt,
		Catalog:    b.Catalog,
		Classifier: b.Classifier,
		Zoning:     b.Zoning,
		Fusion:     fused,
		Report:     b.Report,
	})
	return nil
}
