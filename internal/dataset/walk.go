package dataset

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/sourcegraph/conc/pool"

	"github.com/franz/audioset-prep/internal/util"
)

// job is one source file and the mirrored output it maps to
type job struct {
	src string
	dst string
}

// collect walks src for files ending in ext and mirrors each relative path
// under dst with ext replaced by newExt. Top-level folders named in skip
// and hidden entries are ignored. Output directories are created.
func collect(src, dst, ext, newExt string, skip []string) ([]job, error) {
	skipped := make(map[string]bool, len(skip))
	for _, s := range skip {
		skipped[s] = true
	}

	var jobs []job
	err := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == src {
			return nil
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}

		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if filepath.Dir(rel) == "." && skipped[d.Name()] {
				util.DebugLog("Skipping split %s", d.Name())
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(d.Name(), ".") || !strings.EqualFold(filepath.Ext(path), ext) {
			return nil
		}
		out := filepath.Join(dst, strings.TrimSuffix(rel, filepath.Ext(rel))+newExt)
		jobs = append(jobs, job{src: path, dst: out})
		return nil
	})
	if err != nil {
		return nil, err
	}

	made := make(map[string]bool)
	for _, j := range jobs {
		dir := filepath.Dir(j.dst)
		if made[dir] {
			continue
		}
		if err := util.RetryableMkdirAll(dir, 0o755, nil); err != nil {
			return nil, err
		}
		made[dir] = true
	}
	return jobs, nil
}

// counters are shared by the workers of one run
type counters struct {
	done      atomic.Int64
	skipped   atomic.Int64
	dropped   atomic.Int64
	failed    atomic.Int64
	resampled atomic.Int64
}

// runJobs fans jobs out over a bounded pool. Per-file errors are the
// callback's business; only cancellation is returned.
func runJobs(ctx context.Context, label string, jobs []job, workers int, fn func(context.Context, job)) error {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	var bar *progressbar.ProgressBar
	if util.ShowProgress() && len(jobs) > 0 {
		bar = progressbar.NewOptions(len(jobs),
			progressbar.OptionSetDescription(label),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("files"),
			progressbar.OptionThrottle(200*time.Millisecond),
			progressbar.OptionClearOnFinish(),
		)
	}

	p := pool.New().WithMaxGoroutines(workers).WithContext(ctx)
	for _, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		p.Go(func(ctx context.Context) error {
			if ctx.Err() != nil {
				return nil
			}
			fn(ctx, j)
			if bar != nil {
				bar.Add(1)
			}
			return nil
		})
	}
	p.Wait()
	if bar != nil {
		bar.Finish()
	}
	return ctx.Err()
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
