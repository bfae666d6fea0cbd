package store

import (
	"fmt"
	"strings"
)

// ValidateID rejects path separators and ".." so an id can never be used
// to escape its directory when building a canonical path.
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id must not be empty")
	}
	if strings.ContainsAny(id, "/\\") {
		return fmt.Errorf("id %q must not contain path separators", id)
	}
	if id == "." || id == ".." || strings.Contains(id, "..") {
		return fmt.Errorf("id %q must not contain '..'", id)
	}
	return nil
}
