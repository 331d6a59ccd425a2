package errors

import (
	"regexp"
	"strings"
	"unicode"
)

// handleRegex matches publisher handles: lowercase alphanumerics, dashes and
// underscores, starting with a letter or digit.
var handleRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9_-]*$`)

// partialNameRegex matches the package-name suffix published under a handle.
var partialNameRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_.-]*$`)

// ValidateRequired returns a VALIDATION_ERROR for field when value is empty.
func ValidateRequired(field, value string) error {
	if value == "" {
		return NewValidation(field, "%s is required", field)
	}
	return nil
}

// ValidateHandle validates a publisher handle.
func ValidateHandle(handle string) error {
	if err := ValidateRequired("handle", handle); err != nil {
		return err
	}
	if err := validateSafe("handle", handle, 64); err != nil {
		return err
	}
	if !handleRegex.MatchString(handle) {
		return NewValidation("handle", "invalid handle: %q", handle)
	}
	return nil
}

// ValidatePartialName validates the package-name suffix that, joined with a
// handle, forms the full package name.
func ValidatePartialName(partialName string) error {
	if err := ValidateRequired("partialName", partialName); err != nil {
		return err
	}
	if err := validateSafe("partialName", partialName, 128); err != nil {
		return err
	}
	if !partialNameRegex.MatchString(partialName) {
		return NewValidation("partialName", "invalid package name: %q", partialName)
	}
	return nil
}

// validateSafe rejects names that could be used for path traversal or
// injection in storage paths and REST filters.
func validateSafe(field, name string, maxLen int) error {
	if len(name) > maxLen {
		return NewValidation(field, "%s too long (max %d characters)", field, maxLen)
	}

	for _, r := range name {
		if unicode.IsControl(r) {
			return NewValidation(field, "%s contains invalid control characters", field)
		}
	}

	dangerousPatterns := []string{
		"..",   // Parent directory
		"/",    // Path separator
		"\x00", // Null byte
		"\\",   // Backslash (Windows path)
	}

	for _, pattern := range dangerousPatterns {
		if strings.Contains(name, pattern) {
			return NewValidation(field, "%s contains invalid characters: %q", field, pattern)
		}
	}

	return nil
}

// ValidateURL validates a URL string for safety.
// It ensures the URL has a safe scheme (http or https).
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return NewValidation("url", "URL cannot be empty")
	}

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return NewValidation("url", "URL must use http or https scheme")
	}

	return nil
}
