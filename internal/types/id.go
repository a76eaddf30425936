// README: Common identifier type used across modules.
package types

import "github.com/google/uuid"

// ID is a UUID-shaped row identifier. Stored as text everywhere; the
// zero value means "absent".
type ID string

func NewID() ID {
	return ID(uuid.NewString())
}

// Valid reports whether the id parses as a UUID. Multi-tenant lookups
// reject malformed ids before touching storage.
func (id ID) Valid() bool {
	_, err := uuid.Parse(string(id))
	return err == nil
}

func (id ID) String() string { return string(id) }
