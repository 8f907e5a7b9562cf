package bus

import (
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/senseauto/drivebus/wire"
)

const (
	// maxChunkPacket is the total size budget (header + data) for one
	// chunk packet, chosen well under the UDP MTU so it never
	// fragments at the IP layer.
	maxChunkPacket = 1200
	// topicOverheadAllowance reserves room for the "topic|" framing
	// prepended by the wire codec before the chunk packet becomes a
	// WireFrame payload.
	topicOverheadAllowance = 50

	// EffectiveChunkSize is the usable payload carried per chunk after
	// reserving room for the chunk header and topic framing overhead.
	EffectiveChunkSize = maxChunkPacket - topicOverheadAllowance - wire.ChunkHeaderSize

	// chunkPaceMin/Max bound the sleep between chunk sends: enough to
	// avoid monopolizing the socket and starving co-tenant publishers
	// (notably a 100 Hz ego-state loop), not so much that a large
	// frame takes unreasonably long to land.
	chunkPaceMin = 1 * time.Millisecond
	chunkPaceMax = 2 * time.Millisecond
)

// frameIDCounter allocates publish-large frame ids. The counter is
// per process, so two processes publishing large payloads on the same
// topic can produce the same (topic, frame_id) key at a receiver; the
// reassembler drops a packet whose total_chunks disagrees with the
// buffer already held for that key, and does not otherwise tell the
// two frames apart.
var frameIDCounter uint32

func nextFrameID() uint32 {
	return atomic.AddUint32(&frameIDCounter, 1)
}

// PublishLarge publishes payload on topic, chunking it if it exceeds
// EffectiveChunkSize. Small payloads take the ordinary single-frame
// path; large ones are split into numbered chunks sent on
// topic+"/chunk", paced 1-2ms apart except after the last chunk.
func (b *Bus) PublishLarge(topic string, payload []byte) error {
	if len(payload) <= EffectiveChunkSize {
		return b.Publish(topic, payload)
	}

	frameID := nextFrameID()
	totalChunks := (len(payload) + EffectiveChunkSize - 1) / EffectiveChunkSize
	chunkTopic := wire.ChunkTopic(topic)

	for chunkID := 0; chunkID < totalChunks; chunkID++ {
		start := chunkID * EffectiveChunkSize
		end := start + EffectiveChunkSize
		if end > len(payload) {
			end = len(payload)
		}
		slice := payload[start:end]

		header := wire.ChunkHeader{
			FrameID:     frameID,
			ChunkID:     uint32(chunkID),
			TotalChunks: uint32(totalChunks),
			ChunkSize:   uint32(len(slice)),
		}
		packet := wire.EncodeChunk(header, slice)

		if err := b.Publish(chunkTopic, packet); err != nil {
			slog.Warn("chunk publish failed", "topic", chunkTopic, "frame_id", frameID, "chunk_id", chunkID, "error", err)
		}

		if chunkID < totalChunks-1 {
			time.Sleep(chunkPaceMin + time.Duration(chunkID%2)*(chunkPaceMax-chunkPaceMin))
		}
	}

	slog.Debug("published chunked frame", "topic", topic, "frame_id", frameID, "chunks", totalChunks, "size", len(payload))
	return nil
}

// PublishMetadata publishes a small sidecar frame on topic (no
// "/chunk" suffix) ahead of a chunk stream, letting receivers update
// state like image width/height/format without waiting for full
// reassembly. Optional: callers that don't need it simply don't call
// this before PublishLarge.
func (b *Bus) PublishMetadata(topic string, metadata []byte) error {
	return b.Publish(topic, metadata)
}
