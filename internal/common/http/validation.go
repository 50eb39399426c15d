package http

import (
	"strings"

	"github.com/google/uuid"
)

// ExtractPostIDFromPath pulls the post id out of /api/posts/user/{id}/ style
// paths. Returns false when the path carries no id segment.
func ExtractPostIDFromPath(path, prefix string) (string, bool) {
	if !strings.HasPrefix(path, prefix) {
		return "", false
	}

	remaining := strings.Trim(strings.TrimPrefix(path, prefix), "/")
	if remaining == "" || strings.Contains(remaining, "/") {
		return "", false
	}

	return remaining, true
}

func ValidateUUID(s string) error {
	_, err := uuid.Parse(s)
	return err
}
