// Command content runs the Content Service: blog posts with owner-checked
// mutation (default port 8001). It trusts bearer tokens signed with the
// secret shared with the identity service.
package main

import (
	"os"

	"github.com/sakif/unitedblog/internal/config"
	"github.com/sakif/unitedblog/internal/server"
)

func main() {
	os.Exit(server.Run(config.Content))
}
