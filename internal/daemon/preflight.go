package daemon

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"

	"salience/internal/config"
)

// minFreeBytes is the floor below which the daemon refuses to start; audio
// recordings and the database share the data volume.
const minFreeBytes = 256 << 20

// CheckResult reports the outcome of a single preflight check.
type CheckResult struct {
	Name   string
	Passed bool
	Detail string
}

// Preflight runs the startup checks for the given config.
func Preflight(cfg *config.Config) []CheckResult {
	if cfg == nil {
		return nil
	}
	return []CheckResult{
		checkDirectoryAccess("Data directory", cfg.Paths.DataDir),
		checkDirectoryAccess("Media directory", cfg.Paths.MediaDir),
		checkDirectoryAccess("Log directory", cfg.Paths.LogDir),
		checkFreeSpace("Data volume", cfg.Paths.DataDir),
	}
}

// PreflightFailures filters results down to the failed checks.
func PreflightFailures(results []CheckResult) []CheckResult {
	var failed []CheckResult
	for _, result := range results {
		if !result.Passed {
			failed = append(failed, result)
		}
	}
	return failed
}

func checkDirectoryAccess(name, path string) CheckResult {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return CheckResult{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

func checkFreeSpace(name, path string) CheckResult {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	free := stat.Bavail * uint64(stat.Bsize)
	if free < minFreeBytes {
		return CheckResult{Name: name, Detail: fmt.Sprintf("%s (error: only %d MiB free)", path, free>>20)}
	}
	return CheckResult{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%d MiB free)", path, free>>20)}
}
