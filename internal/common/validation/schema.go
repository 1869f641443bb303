// internal/common/validation/schema.go
package validation

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	apperrors "notification-workers/internal/common/errors"
)

type ValidationResult struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors,omitempty"`
}

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

func (vr *ValidationResult) GetErrorMessages() []string {
	msgs := make([]string, 0, len(vr.Errors))
	for _, e := range vr.Errors {
		msgs = append(msgs, fmt.Sprintf("%s: %s", e.Field, e.Message))
	}
	return msgs
}

func (vr *ValidationResult) HasErrors(field string) bool {
	for _, e := range vr.Errors {
		if e.Field == field {
			return true
		}
	}
	return false
}

// Schemas compiles JSON schemas once and validates documents against them by name.
type Schemas struct {
	mu       sync.RWMutex
	compiled map[string]*gojsonschema.Schema
}

func NewSchemas() *Schemas {
	return &Schemas{compiled: make(map[string]*gojsonschema.Schema)}
}

func (s *Schemas) Register(name, schemaJSON string) error {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(schemaJSON))
	if err != nil {
		return fmt.Errorf("compile schema %s: %w", name, err)
	}
	s.mu.Lock()
	s.compiled[name] = schema
	s.mu.Unlock()
	return nil
}

func (s *Schemas) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.compiled))
	for n := range s.compiled {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Validate checks doc (any JSON-compatible Go value) against the named schema.
func (s *Schemas) Validate(name string, doc interface{}) (*ValidationResult, error) {
	s.mu.RLock()
	schema, ok := s.compiled[name]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("schema %s not registered", name)
	}

	result, err := schema.Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return nil, fmt.Errorf("validate against %s: %w", name, err)
	}
	return toResult(result), nil
}

// ValidateOrError returns a VALIDATION_FAILED StandardError listing every violation.
func (s *Schemas) ValidateOrError(name string, doc interface{}) error {
	res, err := s.Validate(name, doc)
	if err != nil {
		return apperrors.NewValidationFailedError(err.Error())
	}
	if !res.Valid {
		return apperrors.NewValidationFailedError(strings.Join(res.GetErrorMessages(), "; "))
	}
	return nil
}

func toResult(r *gojsonschema.Result) *ValidationResult {
	out := &ValidationResult{Valid: r.Valid()}
	for _, desc := range r.Errors() {
		out.Errors = append(out.Errors, ValidationError{
			Field:   desc.Field(),
			Message: desc.Description(),
			Code:    strings.ToUpper(desc.Type()),
		})
	}
	return out
}
