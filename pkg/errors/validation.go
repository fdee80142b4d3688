package errors

import (
	"regexp"
	"strings"
	"unicode"
)

const (
	maxTermLength  = 64 << 10
	maxTitleLength = 200
)

// ValidateTerm checks a term before it is sent to the engine. The engine
// does the parsing; this only rejects input no parser should see.
func ValidateTerm(term string) error {
	if strings.TrimSpace(term) == "" {
		return New(ErrCodeMalformedTerm, "term cannot be empty")
	}
	if len(term) > maxTermLength {
		return New(ErrCodeMalformedTerm, "term too long (max %d bytes)", maxTermLength)
	}
	for _, r := range term {
		if r == '\x00' || (unicode.IsControl(r) && r != '\n' && r != '\t' && r != '\r') {
			return New(ErrCodeMalformedTerm, "term contains invalid control characters")
		}
	}
	return nil
}

// ValidateTitle checks a node caption.
func ValidateTitle(title string) error {
	if len(title) > maxTitleLength {
		return New(ErrCodeInvalidInput, "title too long (max %d characters)", maxTitleLength)
	}
	for _, r := range title {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidInput, "title contains invalid control characters")
		}
	}
	return nil
}

// slotNameRegex matches names usable as file names and store keys.
var slotNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]{0,63}$`)

// ValidateSlotName validates the name of a persisted slot. Slot names become
// file names and database keys, so path separators and traversal are refused.
func ValidateSlotName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidInput, "slot name cannot be empty")
	}
	if strings.Contains(name, "..") {
		return New(ErrCodeInvalidInput, "slot name cannot contain path traversal sequences (..)")
	}
	if !slotNameRegex.MatchString(name) {
		return New(ErrCodeInvalidInput, "invalid slot name: %q", name)
	}
	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return New(ErrCodeInvalidInput, "URL cannot be empty")
	}

	// Simple scheme validation without full URL parsing
	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return New(ErrCodeInvalidInput, "URL must use http or https scheme")
	}

	return nil
}
