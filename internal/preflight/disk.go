package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// MinDiskSpaceBytes is the floor for free space next to the database (100MB).
const MinDiskSpaceBytes = 100 * 1024 * 1024

// walHeadroomDivisor keeps a tenth of the database size free for WAL
// growth during a run.
const walHeadroomDivisor = 10

// RequiredDiskSpace returns the free space an index run over a database of
// dbSize bytes needs.
func RequiredDiskSpace(dbSize int64) uint64 {
	return max(uint64(MinDiskSpaceBytes), uint64(max(dbSize, 0)/walHeadroomDivisor))
}

// CheckDiskSpace checks free space on the filesystem holding dbPath.
func (c *Checker) CheckDiskSpace(dbPath string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	var dbSize int64
	if info, err := os.Stat(dbPath); err == nil {
		dbSize = info.Size()
	}
	required := RequiredDiskSpace(dbSize)

	var stat syscall.Statfs_t
	if err := syscall.Statfs(filepath.Dir(dbPath), &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free (minimum: %s)", formatBytes(availableBytes), formatBytes(required))

	if availableBytes < required {
		result.Status = StatusFail
		result.Details = "The write-ahead log grows while places are marked; free some space before indexing"
		return result
	}

	result.Status = StatusPass
	return result
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(bytes uint64) string {
	const (
		KB = 1024
		MB = 1024 * KB
		GB = 1024 * MB
		TB = 1024 * GB
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.1f TB", float64(bytes)/TB)
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d bytes", bytes)
	}
}
