// Package classifier implements the supervised risk model: a class-weighted
// multinomial logistic regression over the catalog's feature vectors.
// Flood events are rare, so training reweights classes inversely to their
// frequency in the training partition.
package classifier

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/urbanrisk/floodwatch/internal/domain"
	"github.com/urbanrisk/floodwatch/internal/feature"
)

// NumClasses is the number of ordinal risk levels.
const NumClasses = 3

// Classifier holds the trained model parameters. Fields are exported for
// state-bundle serialization.
type Classifier struct {
	// Weights[c][f] is the weight of feature f for class c.
	Weights [][]float64 `json:"weights"`
	Bias    []float64   `json:"bias"`

	// HeldOutAccuracy and Importance are training observability figures,
	// not part of the serving contract.
	HeldOutAccuracy float64   `json:"heldOutAccuracy"`
	Importance      []float64 `json:"importance"`
}

// Train fits the classifier on labeled feature vectors using a stratified
// split to preserve class proportions in both partitions. It fails with
// ErrInsufficientData when any class has no held-out examples.
func Train(vectors []domain.FeatureVector, labels []int, cfg domain.TrainingConfig) (*Classifier, error) {
	if len(vectors) == 0 || len(vectors) != len(labels) {
		return nil, fmt.Errorf("%w: %d vectors, %d labels", domain.ErrInsufficientData, len(vectors), len(labels))
	}
	for i, v := range vectors {
		if len(v) != feature.NumFeatures {
			return nil, fmt.Errorf("feature vector %d has length %d, want %d", i, len(v), feature.NumFeatures)
		}
	}
	for i, y := range labels {
		if y < 0 || y >= NumClasses {
			return nil, fmt.Errorf("label %d out of range at row %d", y, i)
		}
	}

	trainIdx, testIdx, err := stratifiedSplit(labels, cfg)
	if err != nil {
		return nil, err
	}

	// Class weights compensate for imbalance: n / (k * count).
	counts := make([]float64, NumClasses)
	for _, i := range trainIdx {
		counts[labels[i]]++
	}
	classWeight := make([]float64, NumClasses)
	for c := range classWeight {
		classWeight[c] = float64(len(trainIdx)) / (NumClasses * counts[c])
	}

	m := &Classifier{
		Weights: make([][]float64, NumClasses),
		Bias:    make([]float64, NumClasses),
	}
	for c := range m.Weights {
		m.Weights[c] = make([]float64, feature.NumFeatures)
	}

	lr := cfg.LearningRate
	if lr <= 0 {
		lr = 0.1
	}
	epochs := cfg.Epochs
	if epochs <= 0 {
		epochs = 500
	}

	gradW := make([][]float64, NumClasses)
	gradB := make([]float64, NumClasses)
	for c := range gradW {
		gradW[c] = make([]float64, feature.NumFeatures)
	}

	for epoch := 0; epoch < epochs; epoch++ {
		for c := range gradW {
			gradB[c] = 0
			for f := range gradW[c] {
				gradW[c][f] = 0
			}
		}
		for _, i := range trainIdx {
			probs := m.softmax(vectors[i])
			w := classWeight[labels[i]]
			for c := 0; c < NumClasses; c++ {
				d := probs[c]
				if c == labels[i] {
					d -= 1
				}
				d *= w
				gradB[c] += d
				for f, x := range vectors[i] {
					gradW[c][f] += d * x
				}
			}
		}
		scale := lr / float64(len(trainIdx))
		for c := 0; c < NumClasses; c++ {
			m.Bias[c] -= scale * gradB[c]
			for f := range m.Weights[c] {
				m.Weights[c][f] -= scale * gradW[c][f]
			}
		}
	}

	// Held-out accuracy.
	correct := 0
	for _, i := range testIdx {
		level, _ := m.Predict(vectors[i])
		if level == labels[i] {
			correct++
		}
	}
	m.HeldOutAccuracy = float64(correct) / float64(len(testIdx))

	// Feature importance: mean absolute weight per feature, normalized.
	m.Importance = make([]float64, feature.NumFeatures)
	total := 0.0
	for f := 0; f < feature.NumFeatures; f++ {
		for c := 0; c < NumClasses; c++ {
			m.Importance[f] += math.Abs(m.Weights[c][f])
		}
		m.Importance[f] /= NumClasses
		total += m.Importance[f]
	}
	if total > 0 {
		for f := range m.Importance {
			m.Importance[f] /= total
		}
	}

	return m, nil
}

// Predict returns the most likely risk level and the full distribution.
// The distribution entries are non-negative and sum to 1.
func (m *Classifier) Predict(vec domain.FeatureVector) (int, domain.RiskProbabilities) {
	probs := m.softmax(vec)
	level := 0
	for c := 1; c < NumClasses; c++ {
		if probs[c] > probs[level] {
			level = c
		}
	}
	return level, domain.RiskProbabilities{
		Low:    probs[0],
		Medium: probs[1],
		High:   probs[2],
	}
}

// Validate checks parameter dimensions after deserialization.
func (m *Classifier) Validate() error {
	if len(m.Weights) != NumClasses || len(m.Bias) != NumClasses {
		return fmt.Errorf("%w: classifier has %d classes, want %d", domain.ErrStateMismatch, len(m.Weights), NumClasses)
	}
	for c, row := range m.Weights {
		if len(row) != feature.NumFeatures {
			return fmt.Errorf("%w: classifier class %d has %d weights, want %d", domain.ErrStateMismatch, c, len(row), feature.NumFeatures)
		}
	}
	return nil
}

func (m *Classifier) softmax(vec domain.FeatureVector) []float64 {
	logits := make([]float64, NumClasses)
	maxLogit := math.Inf(-1)
	for c := 0; c < NumClasses; c++ {
		z := m.Bias[c]
		for f, x := range vec {
			z += m.Weights[c][f] * x
		}
		logits[c] = z
		if z > maxLogit {
			maxLogit = z
		}
	}
	sum := 0.0
	for c := range logits {
		logits[c] = math.Exp(logits[c] - maxLogit)
		sum += logits[c]
	}
	for c := range logits {
		logits[c] /= sum
	}
	return logits
}

// stratifiedSplit partitions row indices per class, holding out
// cfg.TestFraction of each class for evaluation.
func stratifiedSplit(labels []int, cfg domain.TrainingConfig) (train, test []int, err error) {
	frac := cfg.TestFraction
	if frac <= 0 || frac >= 1 {
		frac = 0.2
	}
	rng := rand.New(rand.NewSource(cfg.Seed))

	byClass := make([][]int, NumClasses)
	for i, y := range labels {
		byClass[y] = append(byClass[y], i)
	}
	for c, idx := range byClass {
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })
		nTest := int(float64(len(idx)) * frac)
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		if nTest == 0 || len(idx)-nTest == 0 {
			return nil, nil, fmt.Errorf("%w: risk level %d has no held-out examples after split", domain.ErrInsufficientData, c)
		}
		test = append(test, idx[:nTest]...)
		train = append(train, idx[nTest:]...)
	}
	return train, test, nil
}
