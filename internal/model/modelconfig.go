// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package model

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// MODEL CONFIG
// =============================================================================

// Parameter ranges. Values outside them are clamped to the nearest bound.
const (
	MinTemperature   = 0.0
	MaxTemperature   = 2.0
	MinTopP          = 0.0
	MaxTopP          = 1.0
	MinTopK          = 1
	MinRepeatPenalty = 0.0
	MaxRepeatPenalty = 2.0
	MinContextWindow = 512
	MaxContextWindow = 32768
)

// ModelConfig holds the generation parameters sent with every request.
type ModelConfig struct {
	Temperature   float64 `json:"temperature"`
	TopP          float64 `json:"top_p"`
	TopK          int     `json:"top_k"`
	RepeatPenalty float64 `json:"repeat_penalty"`
	ContextWindow int     `json:"num_ctx"`
	SystemPrompt  string  `json:"system_prompt"`
}

// DefaultModelConfig returns the built-in parameters.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Temperature:   0.8,
		TopP:          0.9,
		TopK:          40,
		RepeatPenalty: 1.1,
		ContextWindow: 2048,
		SystemPrompt:  "You are a helpful AI assistant.",
	}
}

// Correction records a value that was moved into range.
type Correction struct {
	Field ConfigField
	From  string
	To    string
}

func (c Correction) String() string {
	return fmt.Sprintf("%s clamped from %s to %s", c.Field, c.From, c.To)
}

// Clamp moves every out-of-range field to its nearest bound and returns
// one Correction per changed field.
func (c *ModelConfig) Clamp() []Correction {
	var out []Correction

	clampF := func(field ConfigField, v *float64, lo, hi float64) {
		orig := *v
		if *v < lo {
			*v = lo
		} else if *v > hi {
			*v = hi
		}
		if *v != orig {
			out = append(out, Correction{Field: field, From: formatFloat(orig), To: formatFloat(*v)})
		}
	}
	clampF(FieldTemperature, &c.Temperature, MinTemperature, MaxTemperature)
	clampF(FieldTopP, &c.TopP, MinTopP, MaxTopP)
	clampF(FieldRepeatPenalty, &c.RepeatPenalty, MinRepeatPenalty, MaxRepeatPenalty)

	if c.TopK < MinTopK {
		out = append(out, Correction{Field: FieldTopK, From: strconv.Itoa(c.TopK), To: strconv.Itoa(MinTopK)})
		c.TopK = MinTopK
	}

	orig := c.ContextWindow
	if c.ContextWindow < MinContextWindow {
		c.ContextWindow = MinContextWindow
	} else if c.ContextWindow > MaxContextWindow {
		c.ContextWindow = MaxContextWindow
	}
	if orig != c.ContextWindow {
		out = append(out, Correction{Field: FieldContextWindow, From: strconv.Itoa(orig), To: strconv.Itoa(c.ContextWindow)})
	}

	return out
}

// =============================================================================
// FIELD EDITING
// =============================================================================

// ConfigField identifies one editable ModelConfig field.
type ConfigField int

const (
	FieldTemperature ConfigField = iota
	FieldTopP
	FieldTopK
	FieldRepeatPenalty
	FieldContextWindow
	FieldSystemPrompt

	fieldCount
)

// ConfigFields lists the fields in edit order.
var ConfigFields = []ConfigField{
	FieldTemperature, FieldTopP, FieldTopK, FieldRepeatPenalty, FieldContextWindow, FieldSystemPrompt,
}

func (f ConfigField) String() string {
	switch f {
	case FieldTemperature:
		return "Temperature"
	case FieldTopP:
		return "Top P"
	case FieldTopK:
		return "Top K"
	case FieldRepeatPenalty:
		return "Repeat Penalty"
	case FieldContextWindow:
		return "Context Window"
	case FieldSystemPrompt:
		return "System Prompt"
	default:
		return fmt.Sprintf("ConfigField(%d)", int(f))
	}
}

// Range describes the accepted range of numeric fields.
func (f ConfigField) Range() string {
	switch f {
	case FieldTemperature:
		return "0.0 - 2.0"
	case FieldTopP:
		return "0.0 - 1.0"
	case FieldTopK:
		return ">= 1"
	case FieldRepeatPenalty:
		return "0.0 - 2.0"
	case FieldContextWindow:
		return "512 - 32768"
	default:
		return ""
	}
}

// Next returns the following field, wrapping around.
func (f ConfigField) Next() ConfigField { return (f + 1) % fieldCount }

// Prev returns the preceding field, wrapping around.
func (f ConfigField) Prev() ConfigField { return (f + fieldCount - 1) % fieldCount }

// FieldError reports input that could not be parsed for a field.
type FieldError struct {
	Field ConfigField
	Input string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Field, e.Input, e.Err)
}

func (e *FieldError) Unwrap() error { return e.Err }

// Value returns the field formatted for the edit buffer.
func (c ModelConfig) Value(f ConfigField) string {
	switch f {
	case FieldTemperature:
		return formatFloat(c.Temperature)
	case FieldTopP:
		return formatFloat(c.TopP)
	case FieldTopK:
		return strconv.Itoa(c.TopK)
	case FieldRepeatPenalty:
		return formatFloat(c.RepeatPenalty)
	case FieldContextWindow:
		return strconv.Itoa(c.ContextWindow)
	case FieldSystemPrompt:
		return c.SystemPrompt
	default:
		return ""
	}
}

// Set parses input into field f and clamps the result. Unparseable input
// leaves c untouched and returns a *FieldError. The returned corrections
// describe any clamping that happened.
func (c *ModelConfig) Set(f ConfigField, input string) ([]Correction, error) {
	input = strings.TrimSpace(input)
	next := *c

	switch f {
	case FieldTemperature, FieldTopP, FieldRepeatPenalty:
		v, err := strconv.ParseFloat(input, 64)
		if err != nil {
			return nil, &FieldError{Field: f, Input: input, Err: err}
		}
		switch f {
		case FieldTemperature:
			next.Temperature = v
		case FieldTopP:
			next.TopP = v
		default:
			next.RepeatPenalty = v
		}
	case FieldTopK, FieldContextWindow:
		v, err := strconv.Atoi(input)
		if err != nil {
			return nil, &FieldError{Field: f, Input: input, Err: err}
		}
		if f == FieldTopK {
			next.TopK = v
		} else {
			next.ContextWindow = v
		}
	case FieldSystemPrompt:
		next.SystemPrompt = input
	default:
		return nil, &FieldError{Field: f, Input: input, Err: fmt.Errorf("unknown field")}
	}

	corrections := next.Clamp()
	*c = next
	return corrections, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
