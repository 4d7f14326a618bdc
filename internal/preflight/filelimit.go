package preflight

import (
	"fmt"
	"syscall"
)

// baseFileDescriptors covers the database, its WAL, the search index and
// the log file.
const baseFileDescriptors = 256

// RequiredFileDescriptors returns the descriptor limit a run with the given
// number of workers needs. Command providers hold three pipes per worker.
func RequiredFileDescriptors(workers int) uint64 {
	return baseFileDescriptors + uint64(max(workers, 1))*8
}

// CheckFileDescriptors checks that the open file limit fits the worker pool.
func (c *Checker) CheckFileDescriptors(workers int) CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: true,
	}

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	required := RequiredFileDescriptors(workers)
	result.Message = fmt.Sprintf("%d (minimum: %d)", rLimit.Cur, required)

	if rLimit.Cur < required {
		result.Status = StatusFail
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' or lower --threads", required*2)
		return result
	}

	result.Status = StatusPass
	return result
}
