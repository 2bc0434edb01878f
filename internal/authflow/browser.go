package authflow

import (
	"errors"
	"os/exec"
	"runtime"
)

// OpenBrowser opens the user's default browser at url.
// Callers treat failure as non-fatal; the URL is always printed as well.
func OpenBrowser(url string) error {
	var cmd *exec.Cmd
	switch runtime.GOOS {
	case "darwin":
		cmd = exec.Command("open", url)
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	default:
		cmd = exec.Command("xdg-open", url)
	}
	if cmd == nil {
		return errors.New("no browser command available")
	}
	return cmd.Start()
}
