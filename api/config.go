// Package api provides the read-only HTTP API for browsing stored generations.
package api

// Config is the API server configuration.
type Config struct {
	// ListenAddr is the address to listen on (e.g., ":8081")
	ListenAddr string

	// DisableMCP leaves the /mcp endpoint without tools.
	DisableMCP bool
}
