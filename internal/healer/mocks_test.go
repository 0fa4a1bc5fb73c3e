package healer

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/suture-cli/api/schemas"
	"github.com/xkilldash9x/suture-cli/internal/reasoner"
)

// MockRunner is a mock implementation of schemas.TestRunner.
type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, filePath string) (schemas.FailureEvidence, error) {
	args := m.Called(ctx, filePath)
	return args.Get(0).(schemas.FailureEvidence), args.Error(1)
}

// MockDiagnoser is a mock implementation of Diagnoser.
type MockDiagnoser struct {
	mock.Mock
}

func (m *MockDiagnoser) Diagnose(ctx context.Context, fileSource string, ev schemas.FailureEvidence, hint *schemas.FailureClassification) (*reasoner.Diagnosis, error) {
	args := m.Called(ctx, fileSource, ev, hint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reasoner.Diagnosis), args.Error(1)
}
