package errors

import (
	"strings"
	"unicode"
)

// MaxLayerNumber is the largest layer number accepted in a stack.
// GDSII itself stores layers as int16; most tools stay within 0-255.
const MaxLayerNumber = 32767

// ValidateExportName validates a layer export name. The name becomes the
// output file name, so it must be a plain base name.
//
// Validation rules:
//   - Name cannot be empty
//   - Maximum length of 128 characters
//   - No control characters or null bytes
//   - No path separators and no "." or ".." names
func ValidateExportName(name string) error {
	if name == "" {
		return New(ErrCodeInvalidStack, "export name cannot be empty")
	}
	if len(name) > 128 {
		return New(ErrCodeInvalidStack, "export name too long (max 128 characters)")
	}
	for _, r := range name {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidStack, "export name %q contains control characters", name)
		}
	}
	if strings.ContainsAny(name, "/\\") {
		return New(ErrCodeInvalidStack, "export name %q cannot contain path separators", name)
	}
	if name == "." || name == ".." {
		return New(ErrCodeInvalidStack, "export name %q is not a file name", name)
	}
	return nil
}

// ValidateLayerNumber checks that n is a usable GDSII layer number.
func ValidateLayerNumber(n int) error {
	if n < 0 || n > MaxLayerNumber {
		return New(ErrCodeInvalidStack, "layer number %d out of range (0-%d)", n, MaxLayerNumber)
	}
	return nil
}

// ValidatePath validates an input or output file path.
//
// Validation rules:
//   - Path cannot be empty
//   - Maximum length of 4096 characters
//   - No null bytes
func ValidatePath(path string) error {
	if path == "" {
		return New(ErrCodeInvalidPath, "path cannot be empty")
	}
	if len(path) > 4096 {
		return New(ErrCodeInvalidPath, "path too long (max 4096 characters)")
	}
	if strings.ContainsRune(path, 0) {
		return New(ErrCodeInvalidPath, "path contains null bytes")
	}
	return nil
}
