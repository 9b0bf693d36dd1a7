// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidateErrors is a collection of validation errors.
type ValidateErrors []ValidationError

func (e ValidateErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
		// Report fields by their TOML key so messages match the file.
		validate.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("toml"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks struct tags and the cross-field duration rules.
func (c *Config) Validate() error {
	var errs ValidateErrors

	if err := structValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, fe := range fieldErrs {
			errs = append(errs, ValidationError{
				Field:   fieldPath(fe.Namespace()),
				Message: describe(fe),
			})
		}
	}

	positive := []struct {
		field string
		d     Duration
	}{
		{"retry.initial_backoff", c.Retry.InitialBackoff},
		{"retry.max_backoff", c.Retry.MaxBackoff},
		{"monitor.interval", c.Monitor.Interval},
		{"monitor.timeout", c.Monitor.Timeout},
		{"monitor.gpu_refresh", c.Monitor.GPURefresh},
		{"ui.quit_timeout", c.UI.QuitTimeout},
		{"ui.status_ttl", c.UI.StatusTTL},
	}
	for _, p := range positive {
		if p.d.Duration <= 0 {
			errs = append(errs, ValidationError{Field: p.field, Message: "must be a positive duration"})
		}
	}

	if c.Retry.MaxBackoff.Duration < c.Retry.InitialBackoff.Duration {
		errs = append(errs, ValidationError{
			Field:   "retry.max_backoff",
			Message: fmt.Sprintf("must be at least initial_backoff (%s)", c.Retry.InitialBackoff),
		})
	}
	if c.Monitor.Timeout.Duration > c.Monitor.Interval.Duration {
		errs = append(errs, ValidationError{
			Field:   "monitor.timeout",
			Message: fmt.Sprintf("must not exceed interval (%s)", c.Monitor.Interval),
		})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// fieldPath drops the root struct name: "Config.retry.max_attempts" -> "retry.max_attempts".
func fieldPath(ns string) string {
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "url":
		return fmt.Sprintf("invalid URL %q", fe.Value())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("invalid value %q, must be one of: %s", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	default:
		return fmt.Sprintf("failed %q check", fe.Tag())
	}
}
