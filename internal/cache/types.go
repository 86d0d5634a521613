package cache

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"hash"
	"strconv"
	"time"
)

var (
	// ErrItemTooLarge is returned when an item exceeds the cache capacity.
	ErrItemTooLarge = errors.New("item too large for cache")

	// ErrClosed is returned by Put after Close.
	ErrClosed = errors.New("cache is closed")
)

// Store is the cache contract used by the conversion pipeline.
type Store interface {
	Get(key string) ([]byte, bool)
	Put(key string, value []byte) error
	Stats() Stats
	Close() error
}

// Stats holds cache metrics.
type Stats struct {
	Capacity  int64
	Size      int64
	Items     int64
	Hits      int64
	Misses    int64
	Evictions int64
	HitRate   float64

	// Promotions counts disk hits copied into memory by a Manager.
	Promotions int64

	LastAccess time.Time
	LastEvict  time.Time
}

func (s *Stats) updateHitRate() {
	if total := s.Hits + s.Misses; total > 0 {
		s.HitRate = float64(s.Hits) / float64(total)
	}
}

// Key derives the cache key for one synthesized chunk. engine is the
// engine fingerprint (tts.EngineInfo.Fingerprint). Fields are length
// prefixed so that no two tuples share an encoding.
func Key(engine, voice string, speed float64, text string) string {
	h := sha256.New()
	writeField(h, engine)
	writeField(h, voice)
	writeField(h, strconv.FormatFloat(speed, 'f', 3, 64))
	writeField(h, text)
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h hash.Hash, s string) {
	var n [8]byte
	binary.BigEndian.PutUint64(n[:], uint64(len(s)))
	h.Write(n[:])
	h.Write([]byte(s))
}

// Nop is a Store that never holds anything.
type Nop struct{}

func (Nop) Get(string) ([]byte, bool) { return nil, false }
func (Nop) Put(string, []byte) error  { return nil }
func (Nop) Stats() Stats              { return Stats{} }
func (Nop) Close() error              { return nil }
