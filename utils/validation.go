// utils/validation.go
package utils

import "strings"

var clientStatuses = map[string]struct{}{
	"pending":        {},
	"contacted":      {},
	"interested":     {},
	"not_interested": {},
	"converted":      {},
	"lost":           {},
}

// NormalizeStatus lower-cases a client status and reports whether it is one we track.
func NormalizeStatus(status string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(status))
	_, ok := clientStatuses[s]
	return s, ok
}

// Pagination clamps page and size query values: page starts at 1, size stays in [1, 100].
func Pagination(page, size int) (offset, limit int) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 10
	}
	if size > 100 {
		size = 100
	}
	return (page - 1) * size, size
}
