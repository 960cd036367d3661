// Command identity runs the Identity Service: account registration, token
// issuance and the caller's own profile (default port 8000).
//
// Configuration comes from built-in defaults, then the YAML file named by
// CONFIG_FILE (optional), then environment variables. See internal/config.
package main

import (
	"os"

	"github.com/sakif/unitedblog/internal/config"
	"github.com/sakif/unitedblog/internal/server"
)

func main() {
	os.Exit(server.Run(config.Identity))
}
