//go:build linux || darwin

package platform

import "golang.org/x/sys/unix"

// DisableCoreDumps zeroes the core-dump rlimit so a crash of a process
// holding key material cannot write plaintext keys to disk.
func DisableCoreDumps() error {
	var rlim unix.Rlimit
	rlim.Cur = 0
	rlim.Max = 0
	return unix.Setrlimit(unix.RLIMIT_CORE, &rlim)
}
