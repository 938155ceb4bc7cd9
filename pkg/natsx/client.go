// Package natsx connects the result sink to a NATS server.
package natsx

import (
	"os"

	"github.com/nats-io/nats.go"
)

// EnvURL is consulted when no explicit server URL is configured.
const EnvURL = "NATS_URL"

// NewClient connects to url, falling back to $NATS_URL and then to the NATS
// default URL. Without explicit options the connection is named "kwexec" and
// compressed.
func NewClient(url string, opts ...nats.Option) (*nats.Conn, error) {
	if url == "" {
		url = os.Getenv(EnvURL)
	}
	if url == "" {
		url = nats.DefaultURL
	}
	if len(opts) == 0 {
		opts = append(opts, nats.Name("kwexec"), nats.Compression(true))
	}
	return nats.Connect(url, opts...)
}
