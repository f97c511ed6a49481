// Package validation provides input validation utilities.
package validation

import (
	"errors"
	"regexp"
	"strings"
)

var (
	// ErrInputRequired indicates a required field is empty.
	ErrInputRequired = errors.New("input is required")
	// ErrInputTooLong indicates input exceeds maximum length.
	ErrInputTooLong = errors.New("input exceeds maximum length")
	// ErrInputInvalid indicates input contains invalid characters.
	ErrInputInvalid = errors.New("input contains invalid characters")
)

const (
	// MaxNamespaceLength bounds namespace tags.
	MaxNamespaceLength = 64
	// MaxDescriptionLength bounds token descriptions.
	MaxDescriptionLength = 500
	// MaxProcessNameLength bounds process names.
	MaxProcessNameLength = 128
)

// Namespaces never contain '_', the token segment delimiter.
var namespacePattern = regexp.MustCompile(`^[a-zA-Z0-9-]+$`)

var processNamePattern = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]*$`)

// All-digit names read as pm_ids.
var numericPattern = regexp.MustCompile(`^[0-9]+$`)

// ValidateNamespace checks a namespace tag: alphanumerics and hyphens only.
func ValidateNamespace(ns string) error {
	if strings.TrimSpace(ns) == "" {
		return ErrInputRequired
	}
	if len(ns) > MaxNamespaceLength {
		return ErrInputTooLong
	}
	if !namespacePattern.MatchString(ns) {
		return ErrInputInvalid
	}
	return nil
}

// ValidateDescription validates a description field.
func ValidateDescription(desc string, maxLength int) error {
	if len(desc) > maxLength {
		return ErrInputTooLong
	}
	if strings.ContainsAny(desc, "\x00") {
		return ErrInputInvalid
	}
	return nil
}

// ValidateProcessName validates a process name as accepted by supervisors.
func ValidateProcessName(name string) error {
	if name == "" {
		return ErrInputRequired
	}
	if len(name) > MaxProcessNameLength {
		return ErrInputTooLong
	}
	if !processNamePattern.MatchString(name) || numericPattern.MatchString(name) {
		return ErrInputInvalid
	}
	return nil
}

// ValidateIdentifier rejects empty or whitespace-only identifiers.
func ValidateIdentifier(id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrInputRequired
	}
	if strings.ContainsAny(id, "\x00\n\r") {
		return ErrInputInvalid
	}
	return nil
}

// ValidatePath validates a working directory path.
func ValidatePath(path string) error {
	if strings.Contains(path, "..") {
		return ErrInputInvalid
	}

	if !strings.HasPrefix(path, "/") {
		return ErrInputInvalid
	}

	if strings.ContainsAny(path, "\x00\n\r") {
		return ErrInputInvalid
	}

	return nil
}
