// Package version provides build version information and runtime metadata.
package version

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Name is the program name reported by Info.
const Name = "claude-usage-tui"

var (
	// These are set via ldflags at build time
	Version = ""
	Commit  = ""
	Date    = ""

	buildVersion, buildCommit, buildDate = Version, Commit, Date

	execCommand = exec.CommandContext
	once        sync.Once
	mu          sync.RWMutex
)

const gitTimeout = 2 * time.Second

func ensureInitialized() {
	once.Do(func() {
		mu.Lock()
		defer mu.Unlock()
		if Date == "" {
			Date = time.Now().Format("2006-01-02")
		}
		if Commit == "" {
			Commit = getGitCommit()
		}
		if Version == "" {
			Version = getGitVersion()
		}
	})
}

// Reset restores the build-time values so the next access resolves
// missing fields again.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	Version, Commit, Date = buildVersion, buildCommit, buildDate
	once = sync.Once{}
}

func git(args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), gitTimeout)
	defer cancel()

	cmd := execCommand(ctx, "git", args...)
	var out bytes.Buffer
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		return "", err
	}
	return strings.TrimSpace(out.String()), nil
}

func getGitCommit() string {
	out, err := git("describe", "--always", "--dirty")
	if err != nil || out == "" {
		return "unknown"
	}
	return out
}

func getGitVersion() string {
	out, err := git("describe", "--tags", "--abbrev=0")
	if err != nil || out == "" {
		return "dev"
	}
	return out
}

// GetVersion returns the release tag, or "dev" outside a tagged checkout.
func GetVersion() string {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return Version
}

// GetCommit returns the commit the binary was built from.
func GetCommit() string {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return Commit
}

// GetDate returns the build date.
func GetDate() string {
	ensureInitialized()
	mu.RLock()
	defer mu.RUnlock()
	return Date
}

// Info returns a one-line description for --version and the info tab.
func Info() string {
	return fmt.Sprintf("%s %s (commit: %s, built: %s, %s/%s)",
		Name, GetVersion(), GetCommit(), GetDate(), runtime.GOOS, runtime.GOARCH)
}
