package tilecache

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/maprender/cache"
	"github.com/IvanBrykalov/maprender/internal/logger"
	"github.com/IvanBrykalov/maprender/tile"
)

const fileExt = ".png"

// FileSystemOptions configures a FileSystem cache. Zero values are safe
// except Dir:
//   - Capacity <= 0 => 1024 files
//   - nil Metrics   => cache.NoopMetrics
type FileSystemOptions struct {
	// Dir holds the cache files. It is created if missing.
	Dir      string
	Capacity int
	Metrics  cache.Metrics
}

// FileSystem is the persistent tier: one PNG per job, named by the job's
// stable hash, with an LRU index bounding the file count. Existing files
// are indexed on start, oldest first, so the cache survives restarts.
//
// Every I/O failure degrades to a miss and is logged; callers never see it.
type FileSystem struct {
	dir      string
	capacity int
	index    cache.Cache[uint64, time.Time] // job hash -> file mod time
	ws       atomic.Pointer[workingSet[uint64]]

	usable  atomic.Bool
	closing atomic.Bool
}

// NewFileSystem opens (or creates) the cache directory and indexes its
// files. An unusable directory yields a cache that never hits.
func NewFileSystem(opt FileSystemOptions) *FileSystem {
	if opt.Capacity <= 0 {
		opt.Capacity = 1024
	}
	f := &FileSystem{dir: opt.Dir, capacity: opt.Capacity}
	f.index = cache.New(cache.Options[uint64, time.Time]{
		Capacity: opt.Capacity,
		Shards:   1,
		Metrics:  opt.Metrics,
		Pinned:   func(h uint64) bool { return f.ws.Load().has(h) },
		OnEvict:  f.onEvict,
	})

	if opt.Dir == "" {
		logger.Get().Warn("file tile cache disabled", "reason", "no directory")
		return f
	}
	if err := os.MkdirAll(opt.Dir, 0o755); err != nil {
		logger.Get().Warn("file tile cache disabled", "dir", opt.Dir, "err", err)
		return f
	}
	f.usable.Store(true)
	f.rescan()
	return f
}

// onEvict deletes the file of an entry leaving the index. Replacements
// keep the (rewritten) file; Destroy keeps every file for the next run.
func (f *FileSystem) onEvict(h uint64, _ time.Time, reason cache.EvictReason) {
	if reason == cache.EvictReplaced || f.closing.Load() {
		return
	}
	if err := os.Remove(f.path(h)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Get().Warn("file tile cache: remove", "err", err)
	}
}

func (f *FileSystem) path(h uint64) string {
	return filepath.Join(f.dir, strconv.FormatUint(h, 16)+fileExt)
}

type scanned struct {
	hash uint64
	mod  time.Time
}

func (f *FileSystem) rescan() {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		logger.Get().Warn("file tile cache: scan", "dir", f.dir, "err", err)
		return
	}
	files := make([]scanned, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, fileExt) {
			continue
		}
		h, err := strconv.ParseUint(strings.TrimSuffix(name, fileExt), 16, 64)
		if err != nil {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		files = append(files, scanned{hash: h, mod: info.ModTime()})
	}
	// oldest first, so the newest files end up most recently used
	slices.SortFunc(files, func(a, b scanned) int { return a.mod.Compare(b.mod) })
	for _, s := range files {
		f.index.Set(s.hash, s.mod)
	}
	logger.Get().Debug("file tile cache indexed", "dir", f.dir, "files", f.index.Len())
}

func (f *FileSystem) ContainsKey(job tile.Job) bool {
	return f.usable.Load() && f.index.Contains(job.Hash64())
}

// GetImmediately reads the file synchronously; the file tier has no faster
// path.
func (f *FileSystem) GetImmediately(job tile.Job) *tile.Bitmap {
	bm, err := f.Get(context.Background(), job)
	if err != nil {
		return nil
	}
	return bm
}

func (f *FileSystem) Get(ctx context.Context, job tile.Job) (*tile.Bitmap, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !f.usable.Load() {
		return nil, ErrNotCached
	}
	h := job.Hash64()
	mod, ok := f.index.Get(h)
	if !ok {
		return nil, ErrNotCached
	}
	bm, err := f.read(h)
	if err != nil {
		logger.Get().Warn("file tile cache: read", "job", job.String(), "err", err)
		f.index.Remove(h)
		return nil, ErrNotCached
	}
	bm.SetTimestamp(mod)
	return bm, nil
}

func (f *FileSystem) read(h uint64) (*tile.Bitmap, error) {
	file, err := os.Open(f.path(h))
	if err != nil {
		return nil, err
	}
	defer file.Close()
	return tile.DecodePNG(file)
}

func (f *FileSystem) Put(job tile.Job, bm *tile.Bitmap) {
	if !f.usable.Load() || f.closing.Load() {
		return
	}
	h := job.Hash64()
	if err := f.write(h, bm); err != nil {
		logger.Get().Warn("file tile cache: write", "job", job.String(), "err", err)
		return
	}
	f.index.Set(h, bm.Timestamp())
}

// write goes through a temporary file so readers never see a partial PNG.
func (f *FileSystem) write(h uint64, bm *tile.Bitmap) error {
	tmp, err := os.CreateTemp(f.dir, "tile-*.tmp")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if err := bm.EncodePNG(tmp); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("close %s: %w", name, err)
	}
	ts := bm.Timestamp()
	_ = os.Chtimes(name, ts, ts)
	if err := os.Rename(name, f.path(h)); err != nil {
		_ = os.Remove(name)
		return err
	}
	return nil
}

func (f *FileSystem) SetWorkingSet(jobs []tile.Job) {
	f.ws.Store(newWorkingSet(jobs, tile.Job.Hash64))
}

// Purge deletes every cache file.
func (f *FileSystem) Purge() { f.index.Purge() }

// Destroy stops using the directory but leaves its files for the next run.
func (f *FileSystem) Destroy() {
	f.closing.Store(true)
	_ = f.index.Close()
}

func (f *FileSystem) Capacity() int { return f.capacity }

// Len returns the number of indexed files.
func (f *FileSystem) Len() int { return f.index.Len() }

// Usable reports whether the directory could be opened.
func (f *FileSystem) Usable() bool { return f.usable.Load() }

var _ TileCache = (*FileSystem)(nil)
