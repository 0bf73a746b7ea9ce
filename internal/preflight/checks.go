package preflight

import (
	"context"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"galleryvault/internal/transport"
)

const bytesPerGiB = 1 << 30

// statfs is replaced in tests.
var statfs = func(path string) (available uint64, err error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, err
	}
	return stat.Bavail * uint64(stat.Bsize), nil
}

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckFreeSpace verifies that the filesystem holding path has at least
// minGiB available to unprivileged users.
func CheckFreeSpace(name, path string, minGiB float64) Result {
	available, err := statfs(path)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: statfs: %v)", path, err)}
	}
	freeGiB := float64(available) / bytesPerGiB
	if minGiB > 0 && freeGiB < minGiB {
		return Result{Name: name, Detail: fmt.Sprintf("%s (%.1f GiB free, %.1f GiB required)", path, freeGiB, minGiB)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (%.1f GiB free)", path, freeGiB)}
}

// CheckTransport verifies that an asynchronous transport accepts connections.
func CheckTransport(ctx context.Context, t transport.Transfer) Result {
	name := "Transport " + t.Name()
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := t.Connect(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("connect failed (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "Reachable"}
}
