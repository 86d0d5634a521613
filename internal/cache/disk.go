package cache

import (
	"crypto/sha256"
	"encoding/gob"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/zstd"
)

const (
	indexFile = "cache.index"

	// Items smaller than this are stored raw.
	compressThreshold = 1024
)

// DiskCache is a persistent, zstd-compressed store of chunk audio. Entries
// are evicted least recently used first once capacity is reached.
type DiskCache struct {
	dir      string
	capacity int64
	size     int64

	encoder *zstd.Encoder
	decoder *zstd.Decoder

	index map[string]*diskEntry

	mu     sync.RWMutex
	stats  Stats
	logger *log.Logger
	closed bool
}

type diskEntry struct {
	Key          string
	File         string
	Size         int64
	OriginalSize int64
	Created      time.Time
	LastAccess   time.Time
	Hits         int64
	Compressed   bool
}

// NewDiskCache opens (or creates) a disk cache rooted at dir. A level of zero
// disables compression.
func NewDiskCache(dir string, capacity int64, level int, logger *log.Logger) (*DiskCache, error) {
	if logger == nil {
		logger = log.Default()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create cache directory: %w", err)
	}

	dc := &DiskCache{
		dir:      dir,
		capacity: capacity,
		index:    make(map[string]*diskEntry),
		stats:    Stats{Capacity: capacity},
		logger:   logger,
	}

	if level > 0 {
		var err error
		dc.encoder, err = zstd.NewWriter(nil,
			zstd.WithEncoderLevel(zstd.EncoderLevelFromZstd(level)))
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
	}
	// Always able to read entries written by a compressing run.
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	dc.decoder = dec

	if err := dc.loadIndex(); err != nil {
		logger.Warn("Discarding unreadable cache index", "dir", dir, "err", err)
		dc.index = make(map[string]*diskEntry)
	}
	dc.recalculate()

	return dc, nil
}

// Dir returns the cache directory.
func (dc *DiskCache) Dir() string {
	return dc.dir
}

// Get reads the value for key. Missing or corrupt files are dropped from the
// index and reported as a miss.
func (dc *DiskCache) Get(key string) ([]byte, bool) {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	entry, ok := dc.index[key]
	if !ok {
		dc.stats.Misses++
		return nil, false
	}

	data, err := os.ReadFile(entry.File)
	if err == nil && entry.Compressed {
		data, err = dc.decoder.DecodeAll(data, nil)
	}
	if err != nil {
		dc.logger.Debug("Dropping unreadable cache entry", "file", entry.File, "err", err)
		dc.remove(entry)
		dc.stats.Misses++
		return nil, false
	}

	now := time.Now()
	entry.LastAccess = now
	entry.Hits++
	dc.stats.Hits++
	dc.stats.LastAccess = now

	return data, true
}

// Put writes value under key, evicting older entries as needed.
func (dc *DiskCache) Put(key string, value []byte) error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return ErrClosed
	}

	data, compressed := value, false
	if dc.encoder != nil && len(value) > compressThreshold {
		if enc := dc.encoder.EncodeAll(value, nil); len(enc) < len(value) {
			data, compressed = enc, true
		}
	}

	n := int64(len(data))
	if n > dc.capacity {
		return ErrItemTooLarge
	}

	if existing, ok := dc.index[key]; ok {
		dc.remove(existing)
	}
	for dc.size+n > dc.capacity && len(dc.index) > 0 {
		dc.evictOldest()
	}

	file := dc.path(key)
	if err := writeFileAtomic(file, data); err != nil {
		return fmt.Errorf("write cache file: %w", err)
	}

	now := time.Now()
	dc.index[key] = &diskEntry{
		Key:          key,
		File:         file,
		Size:         n,
		OriginalSize: int64(len(value)),
		Created:      now,
		LastAccess:   now,
		Compressed:   compressed,
	}
	dc.size += n

	return nil
}

// Clear removes every entry and persists the empty index.
func (dc *DiskCache) Clear() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	for _, entry := range dc.index {
		_ = os.Remove(entry.File)
	}
	dc.index = make(map[string]*diskEntry)
	dc.size = 0

	return dc.saveIndex()
}

// RemoveOlderThan drops entries created before cutoff and returns how many
// were removed.
func (dc *DiskCache) RemoveOlderThan(cutoff time.Time) int {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	removed := 0
	for _, entry := range dc.index {
		if entry.Created.Before(cutoff) {
			dc.remove(entry)
			removed++
		}
	}
	return removed
}

// Stats returns cache metrics.
func (dc *DiskCache) Stats() Stats {
	dc.mu.RLock()
	defer dc.mu.RUnlock()

	s := dc.stats
	s.Size = dc.size
	s.Items = int64(len(dc.index))
	s.updateHitRate()
	return s
}

// Close persists the index and releases the codecs.
func (dc *DiskCache) Close() error {
	dc.mu.Lock()
	defer dc.mu.Unlock()

	if dc.closed {
		return nil
	}
	dc.closed = true

	err := dc.saveIndex()
	if dc.encoder != nil {
		_ = dc.encoder.Close()
	}
	dc.decoder.Close()
	return err
}

func (dc *DiskCache) path(key string) string {
	sum := sha256.Sum256([]byte(key))
	return filepath.Join(dc.dir, hex.EncodeToString(sum[:16])+".cache")
}

func (dc *DiskCache) remove(entry *diskEntry) {
	_ = os.Remove(entry.File)
	delete(dc.index, entry.Key)
	dc.size -= entry.Size
}

func (dc *DiskCache) evictOldest() {
	var oldest *diskEntry
	for _, entry := range dc.index {
		if oldest == nil || entry.LastAccess.Before(oldest.LastAccess) {
			oldest = entry
		}
	}
	if oldest == nil {
		return
	}

	dc.remove(oldest)
	dc.stats.Evictions++
	dc.stats.LastEvict = time.Now()
}

func (dc *DiskCache) loadIndex() error {
	f, err := os.Open(filepath.Join(dc.dir, indexFile))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	index := make(map[string]*diskEntry)
	if err := gob.NewDecoder(f).Decode(&index); err != nil {
		return err
	}

	// Entries whose files vanished are dropped.
	for key, e := range index {
		if _, err := os.Stat(e.File); err != nil {
			delete(index, key)
		}
	}
	dc.index = index
	return nil
}

func (dc *DiskCache) saveIndex() error {
	path := filepath.Join(dc.dir, indexFile)
	tmp := path + ".tmp"

	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("save cache index: %w", err)
	}
	if err := gob.NewEncoder(f).Encode(dc.index); err != nil {
		_ = f.Close()
		_ = os.Remove(tmp)
		return fmt.Errorf("save cache index: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("save cache index: %w", err)
	}
	return os.Rename(tmp, path)
}

func (dc *DiskCache) recalculate() {
	dc.size = 0
	for _, e := range dc.index {
		dc.size += e.Size
	}
}

func writeFileAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		_ = os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}
