package id

import (
	"crypto/rand"

	"github.com/oklog/ulid/v2"
)

// New returns a ULID string used as an account identifier. ULIDs sort by
// creation time and work as both DynamoDB partition keys and SQL primary keys.
func New() string {
	return ulid.MustNew(ulid.Now(), rand.Reader).String()
}
