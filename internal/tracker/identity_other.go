//go:build !unix

package tracker

import "os"

// FileIdentity is unavailable on this platform; rotation falls back to
// size comparison.
func FileIdentity(os.FileInfo) string {
	return ""
}
