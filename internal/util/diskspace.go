package util

import "golang.org/x/sys/unix"

// MinLogSpaceMB is the minimum free space recommended in a log directory
// before a run starts.
const MinLogSpaceMB = 100

// GetAvailableSpace returns the available disk space in bytes for the given
// path. Returns 0 if the space cannot be determined.
func GetAvailableSpace(path string) uint64 {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0
	}
	return stat.Bavail * uint64(stat.Bsize)
}

// CheckDiskSpace reports whether path has at least MinLogSpaceMB free,
// logging through logger if not. It returns true (space sufficient, or
// undeterminable) unless a shortage was actually measured.
func CheckDiskSpace(path string, logger func(format string, args ...any)) bool {
	available := GetAvailableSpace(path)
	if available == 0 {
		return true
	}

	availableMB := available / (1024 * 1024)
	if availableMB < MinLogSpaceMB {
		if logger != nil {
			logger("low disk space in %s: %d MB available (recommend at least %d MB)",
				path, availableMB, MinLogSpaceMB)
		}
		return false
	}
	return true
}
