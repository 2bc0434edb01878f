package apiclient

import (
	"fmt"
	"runtime"
)

// Version is the CLI version reported in the User-Agent header.
// Overridden at build time via -ldflags.
var Version = "dev"

// userAgent builds the default User-Agent string, e.g.
// "accomplish-cli/0.4.2 (linux; amd64)".
func userAgent() string {
	return fmt.Sprintf("accomplish-cli/%s (%s; %s)", Version, runtime.GOOS, runtime.GOARCH)
}
