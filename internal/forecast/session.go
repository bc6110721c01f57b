package forecast

import (
	"context"
	"sync"

	"github.com/richxcame/ridedemand/pkg/validation"
)

// Session is the state behind one open dashboard. Changing inputs only
// rebuilds the vector; the model runs on Submit.
type Session struct {
	ID string

	predictor *Predictor

	mu        sync.Mutex
	input     FeatureInput
	vector    FeatureVector
	submitted int
}

// NewSession starts a session at the given inputs
func NewSession(id string, predictor *Predictor, initial FeatureInput) *Session {
	return &Session{
		ID:        id,
		predictor: predictor,
		input:     initial,
		vector:    Build(initial),
	}
}

// InputsChanged validates in and recomputes the vector. Invalid input leaves
// the previous vector in place and returns a *validation.ValidationError.
func (s *Session) InputsChanged(in FeatureInput) (FeatureVector, error) {
	if err := validation.ValidateStruct(&in); err != nil {
		return FeatureVector{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.input = in
	s.vector = Build(in)
	return s.vector, nil
}

// Submit predicts on the current vector
func (s *Session) Submit(ctx context.Context) (PredictionResult, error) {
	s.mu.Lock()
	vec := s.vector
	s.submitted++
	s.mu.Unlock()

	return s.predictor.Predict(ctx, vec)
}

// Input returns the current inputs
func (s *Session) Input() FeatureInput {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.input
}

// Vector returns the current vector
func (s *Session) Vector() FeatureVector {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vector
}

// Submissions returns how many times Submit was called
func (s *Session) Submissions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.submitted
}
