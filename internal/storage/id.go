package storage

import (
	"crypto/rand"
	"crypto/sha1" //nolint:gosec
	"encoding/hex"
	"regexp"
)

const (
	// SHA1Short is how many characters of an ID the CLI prints.
	SHA1Short = 7
	// SHA1MinLen is the shortest ID prefix Find accepts.
	SHA1MinLen = 4
)

// SHA1Regexp matches a full 40 character ID.
var SHA1Regexp = regexp.MustCompile(`\b[0-9a-f]{40}\b`)

// NewID returns a random 40 character hex ID shared by conversations and
// reports.
func NewID() string {
	var seed [64]byte
	_, _ = rand.Read(seed[:])
	sum := sha1.Sum(seed[:]) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

// Short returns the display form of id.
func Short(id string) string {
	if len(id) > SHA1Short {
		return id[:SHA1Short]
	}
	return id
}
