// Package iovalidate implements the I/O Validator (§4.7): validating a
// computed input or produced output against its component's compiled
// schema, surfacing both instance and schema paths on failure.
package iovalidate

import (
	"encoding/json"
	"fmt"

	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/schema"
)

// Direction distinguishes which side of a component the validation is
// for; it is carried on ComponentValidationFailed so a UI knows which
// panel to highlight.
type Direction int

const (
	Input Direction = iota
	Output
)

func (d Direction) String() string {
	if d == Output {
		return "Output"
	}
	return "Input"
}

// ComponentValidationFailed is the stable, structured validation
// failure carrying everything a UI needs to render it (§4.7, §7).
type ComponentValidationFailed struct {
	Handle    primitives.Handle
	Direction Direction
	Failures  []schema.ValidationFailure
	Data      json.RawMessage
}

func (e *ComponentValidationFailed) Error() string {
	return fmt.Sprintf("ComponentValidationFailed: handle %q, %s: %d failure(s)",
		e.Handle, e.Direction, len(e.Failures))
}

// Validate checks data against s and returns a ComponentValidationFailed
// when it does not conform; nil otherwise.
func Validate(handle primitives.Handle, dir Direction, s *schema.Schema, data json.RawMessage) error {
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return &ComponentValidationFailed{
			Handle:    handle,
			Direction: dir,
			Failures:  []schema.ValidationFailure{{Message: fmt.Sprintf("invalid JSON: %v", err)}},
			Data:      data,
		}
	}

	failures, err := s.Validate(instance)
	if err != nil {
		return fmt.Errorf("iovalidate: %w", err)
	}
	if len(failures) == 0 {
		return nil
	}
	return &ComponentValidationFailed{
		Handle:    handle,
		Direction: dir,
		Failures:  failures,
		Data:      data,
	}
}
