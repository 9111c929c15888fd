// Package validation checks request bodies against JSON schemas and turns
// schema violations into field-level error details.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/qri-io/jsonschema"

	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
)

const (
	CodeRequired = "required"
	CodeInvalid  = "invalid"
	CodeSyntax   = "invalid_json"
)

var requiredMessage = regexp.MustCompile(`^"([^"]+)" value is required$`)

type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// New compiles the given schemas keyed by name.
func New(raw map[string]string) (*Validator, error) {
	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(raw))}
	for name, doc := range raw {
		rs := &jsonschema.Schema{}
		if err := json.Unmarshal([]byte(doc), rs); err != nil {
			return nil, fmt.Errorf("compile schema %s: %w", name, err)
		}
		v.schemas[name] = rs
	}
	return v, nil
}

// Default returns a validator with every request schema of the application.
func Default() *Validator {
	v, err := New(Schemas)
	if err != nil {
		panic(err)
	}
	return v
}

// Validate checks body against the named schema. A violation returns an
// INVALID_INPUT AppError carrying one detail per failing field.
func (v *Validator) Validate(ctx context.Context, schema string, body []byte) error {
	rs, ok := v.schemas[schema]
	if !ok {
		return apperrors.New(apperrors.CodeInternalServer, fmt.Sprintf("unknown schema %q", schema))
	}

	if !json.Valid(body) {
		return apperrors.NewValidation([]apperrors.FieldError{{
			Field:   "body",
			Message: "Request body must be valid JSON",
			Code:    CodeSyntax,
		}})
	}

	keyErrs, err := rs.ValidateBytes(ctx, body)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInvalidInput, "Request body could not be validated")
	}
	if len(keyErrs) == 0 {
		return nil
	}
	return apperrors.NewValidation(Details(keyErrs))
}

// Decode validates body and unmarshals it into dst.
func (v *Validator) Decode(ctx context.Context, schema string, body []byte, dst any) error {
	if err := v.Validate(ctx, schema, body); err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewValidation([]apperrors.FieldError{{
			Field:   "body",
			Message: err.Error(),
			Code:    CodeSyntax,
		}})
	}
	return nil
}

// Details converts schema key errors into field errors ordered by field.
func Details(keyErrs []jsonschema.KeyError) []apperrors.FieldError {
	details := make([]apperrors.FieldError, 0, len(keyErrs))
	seen := make(map[string]struct{}, len(keyErrs))

	for _, ke := range keyErrs {
		field := fieldName(ke.PropertyPath)
		code := CodeInvalid

		if m := requiredMessage.FindStringSubmatch(ke.Message); m != nil {
			field = joinField(field, m[1])
			code = CodeRequired
		}
		if field == "" {
			field = "body"
		}

		key := field + "\x00" + ke.Message
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		details = append(details, apperrors.FieldError{Field: field, Message: ke.Message, Code: code})
	}

	sort.SliceStable(details, func(i, j int) bool { return details[i].Field < details[j].Field })
	return details
}

// fieldName turns a JSON pointer such as "/answers/0/response" into "answers.0.response".
func fieldName(pointer string) string {
	pointer = strings.TrimPrefix(pointer, "#")
	pointer = strings.Trim(pointer, "/")
	if pointer == "" {
		return ""
	}
	parts := strings.Split(pointer, "/")
	for i, p := range parts {
		parts[i] = strings.NewReplacer("~1", "/", "~0", "~").Replace(p)
	}
	return strings.Join(parts, ".")
}

func joinField(parent, child string) string {
	if parent == "" {
		return child
	}
	return parent + "." + child
}
