package utils

import (
	"errors"
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/bytedance/sonic"
)

// Payload size limits in bytes.
const (
	// MaxPayloadSize caps a single cached workflow or task payload.
	MaxPayloadSize = 1 * 1024 * 1024

	// MaxIDLength caps identifiers used as cache keys and file names.
	MaxIDLength = 128
)

// SafeIDPattern allows alphanumeric, dots, hyphens and underscores.
var SafeIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

var (
	ErrPayloadEmpty    = errors.New("payload is empty")
	ErrPayloadTooLarge = errors.New("payload too large")
	ErrPayloadNotUTF8  = errors.New("payload is not valid UTF-8")
	ErrPayloadNotJSON  = errors.New("payload is not valid JSON")
)

// PayloadValidator enforces size and shape limits on payloads before
// they are cached or forwarded.
type PayloadValidator struct {
	maxSize int
}

// NewPayloadValidator creates a validator with the given byte limit.
func NewPayloadValidator(maxSize int) *PayloadValidator {
	return &PayloadValidator{maxSize: maxSize}
}

// DefaultPayloadValidator returns a validator with the standard limit.
func DefaultPayloadValidator() *PayloadValidator {
	return NewPayloadValidator(MaxPayloadSize)
}

// Validate checks a raw payload. Size is checked before parsing, so an
// oversized body is rejected without being scanned.
func (v *PayloadValidator) Validate(payload []byte) error {
	if len(payload) == 0 {
		return ErrPayloadEmpty
	}
	if len(payload) > v.maxSize {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(payload), v.maxSize)
	}
	if !utf8.Valid(payload) {
		return ErrPayloadNotUTF8
	}
	if !sonic.Valid(payload) {
		return ErrPayloadNotJSON
	}
	return nil
}

// ValidateID checks an identifier used as a cache key or file name.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id is required")
	}
	if id == "." || id == ".." {
		return fmt.Errorf("id must not be a path component")
	}
	if utf8.RuneCountInString(id) > MaxIDLength {
		return fmt.Errorf("id must not exceed %d characters", MaxIDLength)
	}
	if !SafeIDPattern.MatchString(id) {
		return fmt.Errorf("id contains invalid characters (only alphanumeric, dots, hyphens, and underscores allowed)")
	}
	return nil
}
