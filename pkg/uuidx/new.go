package uuidx

import "github.com/google/uuid"

// clientNamespace scopes the name-based identifiers produced by ClientID.
var clientNamespace = uuid.MustParse("6f0c5a4e-2b7d-4c39-9a51-8e1f3d2c7b60")

// New generates a new UUID using the version 7 format and returns it.
// It panics if the UUID generation fails.
func New() uuid.UUID {
	return uuid.Must(uuid.NewV7())
}

// NewString generates a new UUID using the version 7 format and returns it as a string.
func NewString() string {
	return New().String()
}

// ClientID derives a stable identifier from seed, typically a hostname or an
// install path. The same seed always yields the same identifier, which makes it
// suitable as the per-installation user id the service uses for abuse tracking.
// An empty seed yields a random identifier.
func ClientID(seed string) string {
	if seed == "" {
		return NewString()
	}
	return uuid.NewSHA1(clientNamespace, []byte(seed)).String()
}
