// Package cache implements kcfs's page-granular write-back cache: a
// multi-tenant, rule-routed cache that shards traffic across
// independently sized eviction domains, translates (offset, length)
// requests into page-aligned staging-store operations, and guarantees
// writeback of dirty pages on eviction.
package cache

import (
	"io"
	"sync"

	"go.uber.org/zap"
)

// shard is one independently sized, independently evicted cache
// domain. Reads, writes, eviction and flush within a shard are
// mutually exclusive; different shards share no mutable state and
// may proceed concurrently.
type shard struct {
	mu     sync.Mutex
	rule   string
	policy string
	index  replacementIndex
}

// Engine orchestrates page identity, the page range planner, the
// staging store, the eviction index and the shard router for read,
// write, truncate and flush. It is a value with explicit lifetime:
// constructed once at mount by the filesystem bridge (or a test),
// destroyed with Close at unmount.
type Engine struct {
	cfg     *Config
	log     *zap.Logger
	guard   *directoryGuard
	staging *stagingStore
	router  *router
	shards  []*shard
	opener  BackingOpener
}

// New constructs an Engine from a validated configuration. It takes
// an exclusive lock on cache_dir and must be balanced by a call to
// Close.
func New(cfg *Config, opener BackingOpener, logger *zap.Logger) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if opener == nil {
		opener = osOpener{}
	}

	guard, err := acquireDirectoryGuard(cfg.CacheDir)
	if err != nil {
		return nil, err
	}

	rules := make([]string, len(cfg.Caches))
	shards := make([]*shard, len(cfg.Caches))
	for i, sc := range cfg.Caches {
		rules[i] = sc.Dir
		shards[i] = &shard{
			rule:   sc.Dir,
			policy: sc.ReplacementPolicy,
			index:  newReplacementIndex(sc.ReplacementPolicy, sc.Size),
		}
	}

	e := &Engine{
		cfg:     cfg,
		log:     logger,
		guard:   guard,
		staging: newStagingStore(cfg.CacheDir, cfg.PageSize),
		router:  newRouter(cfg.IgnoreDir, rules),
		shards:  shards,
		opener:  opener,
	}
	e.log.Info("cache engine started",
		zap.String("cache_dir", cfg.CacheDir),
		zap.Int("page_size", cfg.PageSize),
		zap.Int("shards", len(shards)),
		zap.String("instance_id", guard.InstanceID.String()),
	)
	return e, nil
}

// Close releases the directory guard. It does not flush resident
// dirty pages; callers that need durability must Flush each open path
// first.
func (e *Engine) Close() error {
	return e.guard.release()
}

// Stats reports read-only occupancy for every shard, in declaration
// order, for diagnostics and tests.
func (e *Engine) Stats() []ShardStats {
	out := make([]ShardStats, len(e.shards))
	for i, sh := range e.shards {
		sh.mu.Lock()
		out[i] = ShardStats{
			Rule:     sh.rule,
			Policy:   sh.policy,
			Capacity: sh.index.capacity(),
			Size:     sh.index.length(),
		}
		sh.mu.Unlock()
	}
	return out
}

// Read returns length bytes starting at offset in path, filling any
// resident page from the staging store and fetching and caching any
// missing page from fh.
func (e *Engine) Read(path string, length int, offset int64, fh BackingHandle) ([]byte, error) {
	if length == 0 {
		return []byte{}, nil
	}

	route := e.router.route(path)
	if route.bypass {
		return e.readBypass(path, length, offset, fh)
	}

	sh := e.shards[route.shard]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	spans := planPages(offset, length, e.cfg.PageSize)
	out := make([]byte, length)
	consumed := 0

	for _, sp := range spans {
		id := newPageID(path, sp.index)
		var data []byte

		if sh.index.contains(id) {
			sh.index.touch(id)
			d, err := e.staging.get(id)
			if err != nil {
				return nil, err
			}
			data = d
		} else {
			if sh.index.length() >= sh.index.capacity() {
				if err := e.evictLocked(sh); err != nil {
					return nil, err
				}
			}
			d, err := e.fetchPage(path, sp.start, fh)
			if err != nil {
				return nil, err
			}
			if err := e.staging.put(id, d); err != nil {
				return nil, err
			}
			sh.index.insert(id, CacheEntry{Path: path, Index: sp.index, Dirty: false})
			data = d
		}

		n := sp.hiOff - sp.loOff
		copy(out[consumed:consumed+n], data[sp.loOff:sp.hiOff])
		consumed += n
	}

	if _, err := fh.Seek(offset+int64(length), io.SeekStart); err != nil {
		return nil, backingErr(path, err)
	}
	return out, nil
}

func (e *Engine) readBypass(path string, length int, offset int64, fh BackingHandle) ([]byte, error) {
	if _, err := fh.Seek(offset, io.SeekStart); err != nil {
		return nil, backingErr(path, err)
	}
	buf := make([]byte, length)
	n, err := io.ReadFull(fh, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, backingErr(path, err)
	}
	return buf[:n], nil
}

// fetchPage reads one page_size block starting at pageStart from fh,
// zero-padded on short reads at EOF, which are a legal outcome when a
// page straddles the current end of the backing file.
func (e *Engine) fetchPage(path string, pageStart int64, fh BackingHandle) ([]byte, error) {
	if _, err := fh.Seek(pageStart, io.SeekStart); err != nil {
		return nil, backingErr(path, err)
	}
	buf := make([]byte, e.cfg.PageSize)
	_, err := io.ReadFull(fh, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, backingErr(path, err)
	}
	return buf, nil
}

// Write patches buf into path at offset, routing through the staging
// store: a resident page is patched in place and marked dirty, a
// missing page is either written whole (when the write fully covers
// it) or fetched from fh first and then patched.
func (e *Engine) Write(path string, buf []byte, offset int64, fh BackingHandle) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}

	route := e.router.route(path)
	if route.bypass {
		return e.writeBypass(path, buf, offset, fh)
	}

	sh := e.shards[route.shard]
	sh.mu.Lock()
	defer sh.mu.Unlock()

	spans := planPages(offset, len(buf), e.cfg.PageSize)
	cursor := 0
	total := 0

	for _, sp := range spans {
		id := newPageID(path, sp.index)
		sliceLen := sp.hiOff - sp.loOff
		slice := buf[cursor : cursor+sliceLen]

		if sh.index.contains(id) {
			sh.index.touch(id)
			sh.index.setDirty(id)
			if err := e.staging.patch(id, sp.loOff, slice); err != nil {
				return total, err
			}
		} else {
			if sh.index.length() >= sh.index.capacity() {
				if err := e.evictLocked(sh); err != nil {
					return total, err
				}
			}

			if sp.loOff == 0 && sliceLen == e.cfg.PageSize {
				full := make([]byte, e.cfg.PageSize)
				copy(full, slice)
				if err := e.staging.put(id, full); err != nil {
					return total, err
				}
			} else {
				existing, err := e.fetchPage(path, sp.start, fh)
				if err != nil {
					return total, err
				}
				if err := e.staging.put(id, existing); err != nil {
					return total, err
				}
				if err := e.staging.patch(id, sp.loOff, slice); err != nil {
					e.staging.remove(id)
					return total, err
				}
			}
			sh.index.insert(id, CacheEntry{Path: path, Index: sp.index, Dirty: true})
		}

		cursor += sliceLen
		total += sliceLen
	}

	if _, err := fh.Seek(offset+int64(len(buf)), io.SeekStart); err != nil {
		return total, backingErr(path, err)
	}
	return total, nil
}

func (e *Engine) writeBypass(path string, buf []byte, offset int64, fh BackingHandle) (int, error) {
	if _, err := fh.Seek(offset, io.SeekStart); err != nil {
		return 0, backingErr(path, err)
	}
	n, err := fh.Write(buf)
	if err != nil {
		return n, backingErr(path, err)
	}
	return n, nil
}

// evictLocked picks a victim from sh's eviction index, writes it back
// if dirty, and removes its staging file. sh must already be locked
// by the caller.
func (e *Engine) evictLocked(sh *shard) error {
	id, entry, ok := sh.index.evict()
	if !ok {
		return invariantErr("evict called on empty shard")
	}

	if entry.Dirty {
		if err := e.writeback(id, entry); err != nil {
			sh.index.reinsert(id, entry)
			return err
		}
	}

	if err := e.staging.remove(id); err != nil {
		// Writeback (if any) already committed; the backing file holds
		// the correct bytes, so the entry can be safely treated as
		// clean to preserve the index-equals-disk invariant instead of
		// losing it from the index while its staging file still exists.
		sh.index.reinsert(id, CacheEntry{Path: entry.Path, Index: entry.Index, Dirty: false})
		return err
	}
	return nil
}

// writeback copies a dirty page's bytes back to its owning backing
// file at the correct offset.
func (e *Engine) writeback(id PageID, entry CacheEntry) error {
	data, err := e.staging.get(id)
	if err != nil {
		return err
	}

	bf, err := e.opener.Open(entry.Path)
	if err != nil {
		return evictionErr(entry.Path, err)
	}
	defer bf.Close()

	return writePageAt(bf, entry, data, e.cfg.PageSize)
}

// writePageAt seeks to the page's aligned offset and writes data there:
// the full page for eviction and flush, only the surviving prefix for
// truncate. A short write or I/O error is reported as a fatal
// EvictionFailed.
func writePageAt(bf BackingHandle, entry CacheEntry, data []byte, pageSize int) error {
	if _, err := bf.Seek(int64(entry.Index)*int64(pageSize), io.SeekStart); err != nil {
		return evictionErr(entry.Path, err)
	}
	n, err := bf.Write(data)
	if err != nil {
		return evictionErr(entry.Path, err)
	}
	if n != len(data) {
		return evictionErr(entry.Path, errShortWrite(n, len(data)))
	}
	return nil
}

// Truncate invalidates every resident page at or beyond
// ceil(length/page_size) for path, in every shard, first writing back
// the surviving prefix of the boundary page if it is dirty, then
// truncates the backing file.
func (e *Engine) Truncate(path string, length int64) error {
	cutoff := ceilDiv(length, int64(e.cfg.PageSize))

	for _, sh := range e.shards {
		if err := e.invalidateShard(sh, path, length, cutoff); err != nil {
			return err
		}
	}

	bf, err := e.opener.Open(path)
	if err != nil {
		return backingErr(path, err)
	}
	defer bf.Close()
	if err := bf.Truncate(length); err != nil {
		return backingErr(path, err)
	}
	return nil
}

func (e *Engine) invalidateShard(sh *shard, path string, length, cutoff int64) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	if cutoff > 0 {
		boundaryID := newPageID(path, uint64(cutoff-1))
		if entry, ok := sh.index.get(boundaryID); ok && entry.Path == path {
			if entry.Dirty {
				prefixLen := length - (cutoff-1)*int64(e.cfg.PageSize)
				if prefixLen > 0 {
					full, err := e.staging.get(boundaryID)
					if err != nil {
						return err
					}
					bf, err := e.opener.Open(path)
					if err != nil {
						return backingErr(path, err)
					}
					err = writePageAt(bf, entry, full[:prefixLen], e.cfg.PageSize)
					bf.Close()
					if err != nil {
						return err
					}
				}
				sh.index.clearDirty(boundaryID)
			}
		}
	}

	var toDrop []PageID
	sh.index.forEach(func(id PageID, entry CacheEntry) {
		if entry.Path != path {
			return
		}
		if int64(entry.Index) >= cutoff {
			toDrop = append(toDrop, id)
		}
	})
	for _, id := range toDrop {
		sh.index.delete(id)
		if err := e.staging.remove(id); err != nil {
			return err
		}
	}
	return nil
}

// Flush writes back every dirty page belonging to path in every
// shard, clears their dirty flags, and fsyncs the backing file.
// Residency is preserved. Idempotent: a second call finds nothing
// dirty and only pays for the fsync.
func (e *Engine) Flush(path string, fh BackingHandle) error {
	for _, sh := range e.shards {
		if err := e.flushShard(sh, path); err != nil {
			return err
		}
	}
	if err := fh.Sync(); err != nil {
		return backingErr(path, err)
	}
	return nil
}

func (e *Engine) flushShard(sh *shard, path string) error {
	sh.mu.Lock()
	defer sh.mu.Unlock()

	var dirty []PageID
	sh.index.forEach(func(id PageID, entry CacheEntry) {
		if entry.Path == path && entry.Dirty {
			dirty = append(dirty, id)
		}
	})

	for _, id := range dirty {
		entry, ok := sh.index.get(id)
		if !ok {
			continue
		}
		if err := e.writeback(id, entry); err != nil {
			return err
		}
		sh.index.clearDirty(id)
	}
	return nil
}

// ceilDiv computes ceil(n/d) for non-negative n and positive d.
func ceilDiv(n, d int64) int64 {
	if n <= 0 {
		return 0
	}
	return (n + d - 1) / d
}
