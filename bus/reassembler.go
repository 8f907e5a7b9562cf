package bus

import (
	"sync"
	"time"

	"github.com/senseauto/drivebus/wire"
)

// reassemblyTimeout is how long a buffer may sit with no new chunk
// before the next chunk arrival (on any frame) evicts it.
const reassemblyTimeout = 1 * time.Second

type bufferKey struct {
	parentTopic string
	frameID     uint32
}

type reassemblyBuffer struct {
	totalChunks uint32
	chunks      [][]byte
	filled      int
	lastUpdate  time.Time
}

// reassembler holds one buffer per (parent topic, frame id) pair seen
// within the timeout window. It is deliberately independent of the
// registry's mutex: chunk traffic and local dispatch are different
// concerns, and the teacher keeps distinct mutexes per resource
// (registry vs. per-transport client maps) rather than one global
// lock.
type reassembler struct {
	mu      sync.Mutex
	buffers map[bufferKey]*reassemblyBuffer

	onComplete func(parentTopic string, payload []byte)
	onEvict    func()

	evictedCount int64
}

func newReassembler(onComplete func(parentTopic string, payload []byte), onEvict func()) *reassembler {
	return &reassembler{
		buffers:    make(map[bufferKey]*reassemblyBuffer),
		onComplete: onComplete,
		onEvict:    onEvict,
	}
}

// handleChunk decodes and stores one chunk packet received on
// chunkTopic (a topic ending in "/chunk"). On completion it delivers
// the concatenated payload via onComplete under the parent topic and
// destroys the buffer. It never emits a partial payload.
func (re *reassembler) handleChunk(chunkTopic string, packet []byte) {
	header, data, err := wire.DecodeChunk(packet)
	if err != nil {
		return // malformed chunk header / length mismatch: drop silently
	}
	if header.TotalChunks == 0 || header.ChunkID >= header.TotalChunks {
		return // out-of-range chunk id: drop
	}

	parentTopic := wire.ParentTopic(chunkTopic)
	key := bufferKey{parentTopic: parentTopic, frameID: header.FrameID}

	re.mu.Lock()
	re.evictStaleLocked(key)

	buf, ok := re.buffers[key]
	if ok && time.Since(buf.lastUpdate) > reassemblyTimeout {
		delete(re.buffers, key)
		re.evictedCount++
		if re.onEvict != nil {
			re.onEvict()
		}
		ok = false
	}
	if !ok {
		buf = &reassemblyBuffer{
			totalChunks: header.TotalChunks,
			chunks:      make([][]byte, header.TotalChunks),
		}
		re.buffers[key] = buf
	}

	// Two frames can collide on (parentTopic, frameID) with disagreeing
	// total_chunks — distinct publishers each restart their frame
	// counter at 0, or a malformed peer on the broadcast domain. Either
	// way this packet doesn't belong to the buffer we have; drop it
	// rather than index out of range.
	if header.TotalChunks != buf.totalChunks || int(header.ChunkID) >= len(buf.chunks) {
		re.mu.Unlock()
		return
	}

	if buf.chunks[header.ChunkID] == nil {
		// First time this slot is filled: copy so the caller's buffer
		// (which may be reused) can't corrupt reassembly state.
		stored := make([]byte, len(data))
		copy(stored, data)
		buf.chunks[header.ChunkID] = stored
		buf.filled++
	} else if len(data) == len(buf.chunks[header.ChunkID]) {
		// Duplicate chunk (UDP reordering/retransmit): overwrite with
		// identical bytes, idempotent by construction. A duplicate
		// chunk id carrying a different length than the one already
		// stored can't be the same chunk resent; drop it rather than
		// truncate/corrupt what's already buffered.
		copy(buf.chunks[header.ChunkID], data)
	}
	buf.lastUpdate = time.Now()

	complete := buf.filled == int(buf.totalChunks)
	var payload []byte
	if complete {
		payload = assemble(buf.chunks)
		delete(re.buffers, key)
	}
	re.mu.Unlock()

	if complete && re.onComplete != nil {
		re.onComplete(parentTopic, payload)
	}
}

func assemble(chunks [][]byte) []byte {
	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

// evictStaleLocked opportunistically sweeps every buffer whose
// last-update is older than reassemblyTimeout. Called with re.mu held,
// on every chunk arrival, so memory stays bounded by the number of
// live frames rather than growing without limit when chunks are lost.
func (re *reassembler) evictStaleLocked(skip bufferKey) {
	now := time.Now()
	for key, buf := range re.buffers {
		if key == skip {
			continue
		}
		if now.Sub(buf.lastUpdate) > reassemblyTimeout {
			delete(re.buffers, key)
			re.evictedCount++
			if re.onEvict != nil {
				re.onEvict()
			}
		}
	}
}

// liveBuffers reports how many reassembly buffers are currently held,
// used as a test hook / metric for timeout-eviction verification.
func (re *reassembler) liveBuffers() int {
	re.mu.Lock()
	defer re.mu.Unlock()
	return len(re.buffers)
}

func (re *reassembler) evicted() int64 {
	re.mu.Lock()
	defer re.mu.Unlock()
	return re.evictedCount
}
