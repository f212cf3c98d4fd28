// Package natsx connects to the NATS server used to publish stream deltas.
package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// EnvURL names the environment variable holding the server URL.
const EnvURL = "NATS_URL"

// URL returns the server URL from NATS_URL, or nats.DefaultURL when unset.
func URL() string {
	if u := os.Getenv(EnvURL); u != "" {
		return u
	}
	return nats.DefaultURL
}

// NewClient connects to the server named by NATS_URL. Without options the
// connection is named "oachat" and uses compression.
func NewClient(opts ...nats.Option) (*nats.Conn, error) {
	if len(opts) == 0 {
		opts = append(opts, nats.Name("oachat"), nats.Compression(true))
	}
	return nats.Connect(URL(), opts...)
}
