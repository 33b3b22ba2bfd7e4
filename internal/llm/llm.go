// Package llm defines the language-capability boundary consumed by the audit
// pipeline. The pipeline treats a model as an opaque function: prompt in,
// text or typed object out, or failure. Clients are constructed per run and
// injected into the stages that need them; there is no process-wide model
// state.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Client is a language capability. InvokeStructured decodes the model's
// response into out and fails with *SchemaValidationError when the response
// does not satisfy the expected shape.
type Client interface {
	Invoke(ctx context.Context, prompt string) (string, error)
	InvokeStructured(ctx context.Context, prompt string, out any) error
}

// SchemaValidationError reports a structured-output response that could not
// be decoded into the requested schema. Judge stages retry on this error
// class with corrective feedback; everything else is fatal.
type SchemaValidationError struct {
	Detail string
	Cause  error
}

// Error implements the error interface.
func (e *SchemaValidationError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("schema validation: %s: %v", e.Detail, e.Cause)
	}
	return fmt.Sprintf("schema validation: %s", e.Detail)
}

// Unwrap returns the underlying decode error, if any.
func (e *SchemaValidationError) Unwrap() error { return e.Cause }

// IsSchemaValidation reports whether err is a schema validation failure.
func IsSchemaValidation(err error) bool {
	var sve *SchemaValidationError
	return errors.As(err, &sve)
}
