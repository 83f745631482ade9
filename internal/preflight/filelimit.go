package preflight

import (
	"fmt"
	"syscall"
)

// MinFileDescriptors is the minimum file descriptor limit per worker. A bleve
// index holds a handful of segment files open while it is built and searched.
const MinFileDescriptors = 256

// CheckFileDescriptors checks that the soft limit covers workers concurrent
// index builds.
func (c *Checker) CheckFileDescriptors(workers int) CheckResult {
	result := CheckResult{
		Name:     "file_descriptors",
		Required: false,
	}
	need := uint64(MinFileDescriptors * max(workers, 1))

	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err != nil {
		result.Status = StatusWarn
		result.Message = fmt.Sprintf("failed to check file descriptor limit: %v", err)
		return result
	}

	result.Message = fmt.Sprintf("%d (minimum for %d worker(s): %d)", rLimit.Cur, max(workers, 1), need)
	if rLimit.Cur < need {
		result.Status = StatusWarn
		result.Details = fmt.Sprintf("Run 'ulimit -n %d' or lower sweep.workers", need)
		return result
	}

	result.Status = StatusPass
	return result
}
