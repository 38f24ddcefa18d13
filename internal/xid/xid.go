package xid

import (
	"strings"

	"github.com/oklog/ulid/v2"
)

// New returns a sortable unique id such as "audit-01J9Z3...". An empty prefix
// yields the bare ULID.
func New(prefix string) string {
	id := strings.ToLower(ulid.Make().String())
	if prefix == "" {
		return id
	}
	return prefix + "-" + id
}
