package sim

import (
	"encoding/binary"
	"math"

	"github.com/cespare/xxhash/v2"

	"github.com/bucketapp/ingestsim/internal/event"
)

// Digest hashes the order-sensitive, timing-independent fields of an
// event sequence. Two runs of the same plan at different speed
// multipliers must produce the same digest.
func Digest(events []event.Event) uint64 {
	h := xxhash.New()
	var buf [8]byte
	put := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	for _, ev := range events {
		put(uint64(ev.Type))
		put(uint64(int64(ev.FileIndex)))
		put(uint64(micro(ev.FileProgress)))
		put(uint64(micro(ev.Percent)))
	}
	return h.Sum64()
}

// micro quantizes a fraction to micro-units so float formatting noise
// never affects the digest.
func micro(f float64) int64 {
	return int64(math.Round(f * 1e6))
}
