//go:build unix

package tracker

import (
	"fmt"
	"os"
	"syscall"
)

// FileIdentity returns "<device>:<inode>" for info.
func FileIdentity(info os.FileInfo) string {
	st, ok := info.Sys().(*syscall.Stat_t)
	if !ok {
		return ""
	}
	return fmt.Sprintf("%d:%d", st.Dev, st.Ino)
}
