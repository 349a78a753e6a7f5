package preflight

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	ragerrors "github.com/Aman-CERP/ragstore/internal/errors"
	"github.com/Aman-CERP/ragstore/internal/store"
)

// CheckStatus is the outcome of one check.
type CheckStatus int

const (
	StatusPass CheckStatus = iota
	StatusWarn
	StatusFail
)

// String returns the label printed for the status.
func (s CheckStatus) String() string {
	switch s {
	case StatusPass:
		return "PASS"
	case StatusWarn:
		return "WARN"
	case StatusFail:
		return "FAIL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText encodes the status by its label.
func (s CheckStatus) MarshalText() ([]byte, error) {
	return []byte(strings.ToLower(s.String())), nil
}

// UnmarshalText decodes a label written by MarshalText.
func (s *CheckStatus) UnmarshalText(text []byte) error {
	for _, status := range []CheckStatus{StatusPass, StatusWarn, StatusFail} {
		if strings.EqualFold(string(text), status.String()) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown check status %q", text)
}

// CheckResult holds the result of a single check.
type CheckResult struct {
	Name     string      `json:"name"`
	Status   CheckStatus `json:"status"`
	Message  string      `json:"message"`
	Details  string      `json:"details,omitempty"`
	Required bool        `json:"required"`
}

// IsCritical returns true if this is a required check that failed.
func (r CheckResult) IsCritical() bool {
	return r.Required && r.Status == StatusFail
}

// Prober is the slice of an embedder the embedder check needs.
type Prober interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
	ModelName() string
}

// Checker runs the checks.
type Checker struct {
	prober       Prober
	minDiskSpace uint64
	minFiles     uint64
	probeTimeout time.Duration
}

// Option configures a Checker.
type Option func(*Checker)

// WithEmbedder enables the embedder check.
func WithEmbedder(p Prober) Option {
	return func(c *Checker) {
		c.prober = p
	}
}

// WithMinDiskSpace overrides the free space threshold.
func WithMinDiskSpace(bytes uint64) Option {
	return func(c *Checker) {
		c.minDiskSpace = bytes
	}
}

// WithProbeTimeout bounds the embedder probe. d <= 0 keeps the default.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *Checker) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// New creates a Checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		minDiskSpace: MinDiskSpaceBytes,
		minFiles:     MinFileDescriptors,
		probeTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run runs every check for the store at storagePath. An empty path is an
// in-memory store and skips the filesystem checks.
func (c *Checker) Run(ctx context.Context, storagePath string) []CheckResult {
	var results []CheckResult
	if storagePath == "" {
		results = append(results, CheckResult{
			Name:    "storage_dir",
			Status:  StatusPass,
			Message: "in-memory store, nothing on disk",
		})
	} else {
		results = append(results,
			c.CheckWritePermissions(storagePath),
			c.CheckDiskSpace(storagePath),
			c.CheckStoreLock(storagePath),
		)
	}
	results = append(results, c.CheckFileDescriptors())
	if c.prober != nil {
		results = append(results, c.CheckEmbedder(ctx))
	}
	return results
}

// HasCriticalFailures returns true if any required check failed.
func HasCriticalFailures(results []CheckResult) bool {
	for _, r := range results {
		if r.IsCritical() {
			return true
		}
	}
	return false
}

// SummaryStatus condenses results to ready, ready_with_warnings or failed.
func SummaryStatus(results []CheckResult) string {
	warned := false
	for _, r := range results {
		if r.IsCritical() {
			return "failed"
		}
		if r.Status != StatusPass {
			warned = true
		}
	}
	if warned {
		return "ready_with_warnings"
	}
	return "ready"
}

// Print writes a report of results to w.
func Print(w io.Writer, results []CheckResult, verbose bool) {
	for _, r := range results {
		_, _ = fmt.Fprintf(w, "[%s] %s: %s\n", r.Status, r.Name, r.Message)
		if verbose && r.Details != "" {
			_, _ = fmt.Fprintf(w, "       %s\n", r.Details)
		}
	}
	_, _ = fmt.Fprintf(w, "\nStatus: %s\n", strings.ToUpper(SummaryStatus(results)))
}

// existingDir returns path if it exists, else its nearest existing
// ancestor. exists reports whether path itself exists.
func existingDir(path string) (dir string, exists bool, err error) {
	dir = filepath.Clean(path)
	for {
		info, statErr := os.Stat(dir)
		if statErr == nil {
			if !info.IsDir() {
				return "", false, fmt.Errorf("%s is not a directory", dir)
			}
			return dir, dir == filepath.Clean(path), nil
		}
		if !errors.Is(statErr, fs.ErrNotExist) {
			return "", false, statErr
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", false, statErr
		}
		dir = parent
	}
}

// CheckWritePermissions checks that the store directory, or the ancestor
// it will be created under, accepts new files.
func (c *Checker) CheckWritePermissions(path string) CheckResult {
	result := CheckResult{Name: "storage_dir", Required: true}

	dir, exists, err := existingDir(path)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("cannot use %s: %v", path, err)
		return result
	}

	f, err := os.CreateTemp(dir, ".ragstore-preflight-*")
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("permission denied: %v", err)
		return result
	}
	_ = f.Close()
	_ = os.Remove(f.Name())

	result.Status = StatusPass
	if exists {
		result.Message = "writable"
	} else {
		result.Message = fmt.Sprintf("will be created under %s", dir)
	}
	result.Details = path
	return result
}

// CheckStoreLock reports whether another process holds the store. The
// store opens read-write only when the lock is free.
func (c *Checker) CheckStoreLock(path string) CheckResult {
	result := CheckResult{Name: "store_lock", Required: false}

	if _, exists, err := existingDir(path); err != nil || !exists {
		result.Status = StatusPass
		result.Message = "store not created yet"
		return result
	}

	lock := store.NewDirLock(path)
	if err := lock.TryLock(); err != nil {
		result.Status = StatusWarn
		result.Message = "store is in use by another process"
		if ragerrors.GetCode(err) != ragerrors.ErrCodeStoreLocked {
			result.Message = fmt.Sprintf("cannot check lock: %v", err)
		}
		result.Details = "Stop the running 'ragstore serve' before writing from the CLI"
		return result
	}
	_ = lock.Unlock()

	result.Status = StatusPass
	result.Message = "free"
	return result
}

// CheckEmbedder embeds a probe text and verifies the vector length.
func (c *Checker) CheckEmbedder(ctx context.Context) CheckResult {
	result := CheckResult{Name: "embedder", Required: true}

	ctx, cancel := context.WithTimeout(ctx, c.probeTimeout)
	defer cancel()

	start := time.Now()
	vec, err := c.prober.Embed(ctx, "ragstore preflight probe")
	elapsed := time.Since(start)
	if err != nil {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s unavailable: %v", c.prober.ModelName(), err)
		return result
	}
	if want := c.prober.Dimensions(); len(vec) != want {
		result.Status = StatusFail
		result.Message = fmt.Sprintf("%s returned %d dimensions, expected %d", c.prober.ModelName(), len(vec), want)
		result.Details = "Set embeddings.dimensions to the model's output size"
		return result
	}

	result.Status = StatusPass
	result.Message = fmt.Sprintf("%s (%d dims) answered in %s",
		c.prober.ModelName(), len(vec), elapsed.Round(time.Millisecond))
	return result
}
