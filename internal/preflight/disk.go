package preflight

import (
	"fmt"
	"os"
	"path/filepath"
	"syscall"
)

// MinDiskSpaceBytes is the minimum free space for the index root (200MB).
// A full sweep keeps one bleve index per configuration on disk.
const MinDiskSpaceBytes = 200 * 1024 * 1024

// CheckDiskSpace checks free space on the filesystem that holds path. The
// path does not need to exist yet; its nearest existing ancestor is used.
func (c *Checker) CheckDiskSpace(path string) CheckResult {
	result := CheckResult{
		Name:     "disk_space",
		Required: true,
	}

	probe := existingAncestor(path)
	var stat syscall.Statfs_t
	if err := syscall.Statfs(probe, &stat); err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("failed to check disk space: %v", err)
		return result
	}

	availableBytes := stat.Bavail * uint64(stat.Bsize)
	result.Message = fmt.Sprintf("%s free at %s (minimum: 200 MB)", formatBytes(availableBytes), probe)
	if availableBytes < MinDiskSpaceBytes {
		result.Status = StatusFail
		result.Details = "Each configuration writes its own index; free space or point artifacts.index_root elsewhere"
		return result
	}

	result.Status = StatusPass
	return result
}

// existingAncestor walks up from path until it finds something that exists.
func existingAncestor(path string) string {
	p, err := filepath.Abs(path)
	if err != nil {
		p = path
	}
	for {
		if _, err := os.Stat(p); err == nil {
			return p
		}
		parent := filepath.Dir(p)
		if parent == p {
			return p
		}
		p = parent
	}
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
