// Package rig implements the Rig/Component Parser & Validator (§4.3):
// strict JSON deserialization of rig and component documents, duplicate-
// handle detection, and callout-alias uniqueness checking.
package rig

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/slipwayhq/slipway/pkg/primitives"
	"github.com/slipwayhq/slipway/pkg/schema"
)

// Permission is a lightly-typed literal mirroring the wire grammar in
// §6; full pattern-matcher semantics live in pkg/permission.
type Permission struct {
	Permission string `json:"permission"`
	Any        bool   `json:"any,omitempty"`
	Exact      string `json:"exact,omitempty"`
	Prefix     string `json:"prefix,omitempty"`
	Suffix     string `json:"suffix,omitempty"`
	Within     string `json:"within,omitempty"`
	Publisher  string `json:"publisher,omitempty"`
	Name       string `json:"name,omitempty"`
	Version    string `json:"version,omitempty"`
}

// ComponentRigging is one entry of a Rig's rigging map.
type ComponentRigging struct {
	Component string            `json:"component"`
	Input     json.RawMessage   `json:"input,omitempty"`
	Allow     []Permission      `json:"allow,omitempty"`
	Deny      []Permission      `json:"deny,omitempty"`
	Callouts  map[string]string `json:"callouts,omitempty"`

	// Reference is the parsed form of Component, filled by Parse.
	Reference primitives.Reference `json:"-"`
	// CalloutRefs is the parsed form of Callouts, filled by Parse.
	CalloutRefs map[string]primitives.Reference `json:"-"`
}

// Rig is the deserialized, validated top-level rig document.
type Rig struct {
	Description string                              `json:"description,omitempty"`
	Constants   json.RawMessage                      `json:"constants,omitempty"`
	Rigging     map[primitives.Handle]ComponentRigging `json:"-"`
}

// rigWire is the literal JSON shape, used only to get strict unmarshal
// semantics on the map key type (json.Unmarshal keys a map[Handle]...
// through encoding.TextUnmarshaler, which Handle does not implement, so
// we decode into map[string]... and validate/convert by hand).
type rigWire struct {
	Description string                      `json:"description,omitempty"`
	Constants   json.RawMessage              `json:"constants,omitempty"`
	Rigging     map[string]componentWire     `json:"rigging"`
}

type componentWire struct {
	Component string            `json:"component"`
	Input     json.RawMessage   `json:"input,omitempty"`
	Allow     []Permission      `json:"allow,omitempty"`
	Deny      []Permission      `json:"deny,omitempty"`
	Callouts  map[string]string `json:"callouts,omitempty"`
}

// Warning is a non-fatal issue surfaced alongside a successfully parsed
// rig (§7: root-level validation preserves warnings separately from
// errors).
type Warning struct {
	Message string
}

// ParseResult bundles a parsed rig with any warnings collected while
// validating it.
type ParseResult struct {
	Rig      *Rig
	Warnings []Warning
}

// Parse deserializes and validates a rig document.
func Parse(data []byte) (*ParseResult, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var wire rigWire
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("rig: RigParse: %w", err)
	}

	rigging := make(map[primitives.Handle]ComponentRigging, len(wire.Rigging))
	var warnings []Warning

	for rawHandle, cw := range wire.Rigging {
		h, err := primitives.NewHandle(rawHandle)
		if err != nil {
			return nil, fmt.Errorf("rig: RigParse: %w", err)
		}
		if _, dup := rigging[h]; dup {
			// map keys from encoding/json are already unique per decode,
			// but handles normalize distinct raw strings; guard anyway.
			return nil, fmt.Errorf("rig: RigParse: duplicate handle %q", h)
		}

		ref, err := primitives.ParseReference(cw.Component)
		if err != nil {
			return nil, fmt.Errorf("rig: RigParse: handle %q: %w", h, err)
		}

		calloutRefs, err := parseCallouts(h, cw.Callouts)
		if err != nil {
			return nil, err
		}

		rigging[h] = ComponentRigging{
			Component:   cw.Component,
			Input:       cw.Input,
			Allow:       cw.Allow,
			Deny:        cw.Deny,
			Callouts:    cw.Callouts,
			Reference:   ref,
			CalloutRefs: calloutRefs,
		}
	}

	return &ParseResult{
		Rig: &Rig{
			Description: wire.Description,
			Constants:   wire.Constants,
			Rigging:     rigging,
		},
		Warnings: warnings,
	}, nil
}

// parseCallouts validates that alias targets are well-formed references.
// Aliases are unique by construction (they're JSON object keys); the
// check here is that every alias target parses as a Reference.
func parseCallouts(handle primitives.Handle, callouts map[string]string) (map[string]primitives.Reference, error) {
	if len(callouts) == 0 {
		return nil, nil
	}
	out := make(map[string]primitives.Reference, len(callouts))
	for alias, refStr := range callouts {
		ref, err := primitives.ParseReference(refStr)
		if err != nil {
			return nil, fmt.Errorf("rig: RigParse: handle %q: callout %q: %w", handle, alias, err)
		}
		out[alias] = ref
	}
	return out, nil
}

// Component is the deserialized component definition
// (`slipway_component.json`), §4.3's additional component-level
// validation target.
type Component struct {
	Publisher   primitives.Publisher
	Name        primitives.Name
	Version     primitives.Version
	Description string

	Input  *schema.Schema
	Output *schema.Schema

	Constants json.RawMessage
	Rigging   map[primitives.Handle]ComponentRigging
	Callouts  map[string]string
}

// componentDefWire is the literal JSON shape of slipway_component.json.
type componentDefWire struct {
	Publisher   string           `json:"publisher"`
	Name        string           `json:"name"`
	Version     string           `json:"version"`
	Description string           `json:"description,omitempty"`
	Input       json.RawMessage  `json:"input"`
	Output      json.RawMessage  `json:"output"`
	Constants   json.RawMessage  `json:"constants,omitempty"`
	Rigging     map[string]componentWire `json:"rigging,omitempty"`
	Callouts    map[string]string `json:"callouts,omitempty"`
}

// ParseComponent deserializes and validates a component definition,
// compiling its input/output schemas via pkg/schema. files resolves
// sibling schema $refs.
func ParseComponent(data []byte, files schema.FilesGetter) (*Component, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var wire componentDefWire
	if err := dec.Decode(&wire); err != nil {
		return nil, fmt.Errorf("rig: RigParse: %w", err)
	}

	pub, err := primitives.NewPublisher(wire.Publisher)
	if err != nil {
		return nil, fmt.Errorf("rig: RigParse: %w", err)
	}
	name, err := primitives.NewName(wire.Name)
	if err != nil {
		return nil, fmt.Errorf("rig: RigParse: %w", err)
	}
	ver, err := primitives.ParseVersion(wire.Version)
	if err != nil {
		return nil, fmt.Errorf("rig: RigParse: %w", err)
	}

	inputSchema, err := schema.Compile(wire.Input, "input_schema.json", files)
	if err != nil {
		return nil, err
	}
	outputSchema, err := schema.Compile(wire.Output, "output_schema.json", files)
	if err != nil {
		return nil, err
	}

	var innerRigging map[primitives.Handle]ComponentRigging
	if len(wire.Rigging) > 0 {
		innerRigging = make(map[primitives.Handle]ComponentRigging, len(wire.Rigging))
		for rawHandle, cw := range wire.Rigging {
			h, err := primitives.NewHandle(rawHandle)
			if err != nil {
				return nil, fmt.Errorf("rig: RigParse: %w", err)
			}
			ref, err := primitives.ParseReference(cw.Component)
			if err != nil {
				return nil, fmt.Errorf("rig: RigParse: handle %q: %w", h, err)
			}
			calloutRefs, err := parseCallouts(h, cw.Callouts)
			if err != nil {
				return nil, err
			}
			innerRigging[h] = ComponentRigging{
				Component: cw.Component, Input: cw.Input, Allow: cw.Allow,
				Deny: cw.Deny, Callouts: cw.Callouts,
				Reference: ref, CalloutRefs: calloutRefs,
			}
		}
	}

	if _, err := parseCallouts("<component>", wire.Callouts); err != nil {
		return nil, err
	}

	return &Component{
		Publisher:   pub,
		Name:        name,
		Version:     ver,
		Description: wire.Description,
		Input:       inputSchema,
		Output:      outputSchema,
		Constants:   wire.Constants,
		Rigging:     innerRigging,
		Callouts:    wire.Callouts,
	}, nil
}
