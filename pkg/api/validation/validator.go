// Reclaim Core
// Copyright (c) 2025 The Reclaim Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Reclaim Core.
//
// Reclaim Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Reclaim Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core.  If not, see <http://www.gnu.org/licenses/>.

// Package validation provides validation for API request parameters using
// go-playground/validator with custom validators for Reclaim-specific types.
package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/ReclaimProject/reclaim-core/pkg/partitions"
	"github.com/go-playground/validator/v10"
)

// Common validation errors.
var (
	ErrMissingParams = errors.New("missing params")
	ErrInvalidParams = errors.New("invalid params")
)

// Validator handles validation of API parameters.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a new Validator with registered custom validators.
func NewValidator() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Register custom validators for types that can't use built-ins
	_ = v.RegisterValidation("contextid", validateContextID)
	_ = v.RegisterValidation("arch", validateArch)
	_ = v.RegisterValidation("regex", validateRegex)

	return &Validator{validate: v}
}

// DefaultValidator is a shared validator instance for API use.
var DefaultValidator = NewValidator()

// Validate validates a struct and returns a formatted error if validation fails.
func (v *Validator) Validate(params any) error {
	if err := v.validate.Struct(params); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) {
			return NewError(validationErrors)
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ValidateAndUnmarshal unmarshals JSON params and validates them.
// Returns ErrMissingParams if params is empty, ErrInvalidParams if unmarshal
// fails, or an Error if validation fails.
func ValidateAndUnmarshal[T any](params json.RawMessage, dest *T) error {
	if len(params) == 0 {
		return ErrMissingParams
	}
	if err := json.Unmarshal(params, dest); err != nil {
		return ErrInvalidParams
	}
	return DefaultValidator.Validate(dest)
}

// contextIDPattern matches ids handed out by the session registry.
var contextIDPattern = regexp.MustCompile(`^ctx_[0-9a-f]{16}$`)

// validateContextID checks the registry id format without touching the
// registry, so malformed ids fail as invalid params rather than not-found.
func validateContextID(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	return contextIDPattern.MatchString(val)
}

// validateArch checks if the value names a supported partition table arch.
func validateArch(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	_, err := partitions.ParseArch(val)
	return err == nil
}

// validateRegex checks if string is a valid regex pattern.
func validateRegex(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	if val == "" {
		return true
	}
	_, err := regexp.Compile(val)
	return err == nil
}

// ValidateRegexPattern validates that a regex pattern compiles successfully.
// This is for cases where we need the actual error message from regex
// compilation.
func ValidateRegexPattern(pattern string) error {
	if pattern == "" {
		return nil
	}
	_, err := regexp.Compile(pattern)
	if err != nil {
		return fmt.Errorf("invalid regex pattern: %w", err)
	}
	return nil
}
