package extract

import (
	"errors"
	"fmt"

	"github.com/joseph-ayodele/job-intake/constants"
	"github.com/joseph-ayodele/job-intake/internal/entity"
	"github.com/joseph-ayodele/job-intake/internal/llm"
)

var (
	ErrInvalidJSON    = errors.New("invalid json")
	ErrSchemaMismatch = errors.New("schema mismatch")
)

// responseError tags a parse failure with its kind while printing only the cause.
type responseError struct {
	kind error
	err  error
}

func (e *responseError) Error() string   { return e.err.Error() }
func (e *responseError) Unwrap() []error { return []error{e.kind, e.err} }

func invalidJSON(err error) error    { return &responseError{kind: ErrInvalidJSON, err: err} }
func schemaMismatch(err error) error { return &responseError{kind: ErrSchemaMismatch, err: err} }

// Extraction is one field value proposed by the model.
type Extraction struct {
	Value      any
	Quote      string
	Confidence constants.Confidence
}

// Result is a parsed model response mapped onto flat fields.
type Result struct {
	Extractions   map[string]Extraction
	Comprehensive *ComprehensiveAnalysis
}

// Strategy owns the prompt and response format of one extraction style.
type Strategy interface {
	Name() string
	Messages(text string, client entity.Document) []llm.Message
	// Parse receives the fence-stripped completion.
	Parse(payload []byte) (Result, error)
}

const (
	StrategyFlat          = "flat"
	StrategyComprehensive = "comprehensive"
)

// StrategyByName resolves the EXTRACTION_STRATEGY setting.
func StrategyByName(name string) (Strategy, error) {
	switch name {
	case "", StrategyFlat:
		return NewFlatStrategy(), nil
	case StrategyComprehensive:
		return NewComprehensiveStrategy(), nil
	}
	return nil, fmt.Errorf("unknown extraction strategy %q", name)
}
