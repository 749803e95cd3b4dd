package util

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"syscall"
	"time"
)

// RetryConfig holds retry configuration for filesystem operations.
// Downloads are never retried; a failed candidate is simply dropped.
type RetryConfig struct {
	MaxAttempts int           // Maximum number of attempts (including the first)
	InitialWait time.Duration // Initial wait duration (doubled each retry)
	MaxWait     time.Duration // Maximum wait duration between retries
}

// DefaultRetryConfig returns the default retry configuration
func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts: 3,
		InitialWait: 100 * time.Millisecond,
		MaxWait:     2 * time.Second,
	}
}

// IsRetryableError checks if an error is worth retrying.
// Returns true for transient filesystem errors.
func IsRetryableError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		switch errno {
		case syscall.EAGAIN,
			syscall.EBUSY,
			syscall.EINTR,
			syscall.ETIMEDOUT,
			syscall.EIO:
			return true
		}
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, pattern := range []string{
		"timed out",
		"timeout",
		"resource temporarily unavailable",
		"device or resource busy",
		"i/o error",
		"too many open files",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}

	return false
}

// RetryWithBackoff runs operation until it succeeds, fails with a
// non-retryable error, exhausts cfg.MaxAttempts, or ctx is done.
func RetryWithBackoff[T any](ctx context.Context, cfg *RetryConfig, operation func() (T, error), operationName string) (T, error) {
	var result T
	var err error

	if cfg == nil {
		cfg = DefaultRetryConfig()
	}
	if cfg.MaxAttempts < 1 {
		cfg = &RetryConfig{MaxAttempts: 1}
	}

	wait := cfg.InitialWait

	for attempt := 1; attempt <= cfg.MaxAttempts; attempt++ {
		result, err = operation()
		if err == nil {
			if attempt > 1 {
				DebugLog("Retry: %s succeeded on attempt %d/%d", operationName, attempt, cfg.MaxAttempts)
			}
			return result, nil
		}

		if !IsRetryableError(err) {
			return result, err
		}

		if attempt == cfg.MaxAttempts {
			WarnLog("Retry: %s failed after %d attempts: %v", operationName, cfg.MaxAttempts, err)
			return result, fmt.Errorf("max retries exceeded (%d attempts): %w", cfg.MaxAttempts, err)
		}

		DebugLog("Retry: %s failed (attempt %d/%d), retrying in %v: %v",
			operationName, attempt, cfg.MaxAttempts, wait, err)

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(wait):
		}

		wait *= 2
		if cfg.MaxWait > 0 && wait > cfg.MaxWait {
			wait = cfg.MaxWait
		}
	}

	return result, err
}

// Retry executes a function with retry logic (no return value)
func Retry(ctx context.Context, cfg *RetryConfig, operation func() error, operationName string) error {
	_, err := RetryWithBackoff(ctx, cfg, func() (struct{}, error) {
		return struct{}{}, operation()
	}, operationName)
	return err
}

// RetryableRename renames a file with retry logic
func RetryableRename(oldpath, newpath string, cfg *RetryConfig) error {
	return Retry(context.Background(), cfg, func() error {
		return os.Rename(oldpath, newpath)
	}, fmt.Sprintf("rename(%s -> %s)", oldpath, newpath))
}

// RetryableMkdirAll creates a directory with retry logic
func RetryableMkdirAll(path string, perm os.FileMode, cfg *RetryConfig) error {
	return Retry(context.Background(), cfg, func() error {
		return os.MkdirAll(path, perm)
	}, fmt.Sprintf("mkdir(%s)", path))
}

// RetryableRemoveAll removes a path and its children with retry logic.
// A missing path is not an error.
func RetryableRemoveAll(path string, cfg *RetryConfig) error {
	return Retry(context.Background(), cfg, func() error {
		return os.RemoveAll(path)
	}, fmt.Sprintf("remove(%s)", path))
}
