package wire

import (
	"encoding/binary"
	"fmt"
)

// ChunkHeaderSize is the fixed, big-endian header prepended to every
// chunk of a fragmented payload: frame_id, chunk_id, total_chunks,
// chunk_size, each a u32.
const ChunkHeaderSize = 16

// ChunkSuffix is appended to a topic to mark it as carrying chunk
// packets rather than whole payloads.
const ChunkSuffix = "/chunk"

// ChunkHeader is the fixed-layout header of one chunk packet. It is
// deliberately independent of any application payload schema so the
// reassembler never needs to understand what it is reassembling.
type ChunkHeader struct {
	FrameID     uint32
	ChunkID     uint32
	TotalChunks uint32
	ChunkSize   uint32
}

// EncodeChunk prepends the header to data, producing the full chunk
// packet that becomes the payload of a WireFrame on topic+"/chunk".
func EncodeChunk(h ChunkHeader, data []byte) []byte {
	buf := make([]byte, ChunkHeaderSize+len(data))
	binary.BigEndian.PutUint32(buf[0:4], h.FrameID)
	binary.BigEndian.PutUint32(buf[4:8], h.ChunkID)
	binary.BigEndian.PutUint32(buf[8:12], h.TotalChunks)
	binary.BigEndian.PutUint32(buf[12:16], uint32(len(data)))
	copy(buf[ChunkHeaderSize:], data)
	return buf
}

// DecodeChunk splits a chunk packet into its header and data slice.
// It fails if the packet is shorter than the header or if the
// declared chunk_size does not match the remaining bytes.
func DecodeChunk(packet []byte) (ChunkHeader, []byte, error) {
	if len(packet) < ChunkHeaderSize {
		return ChunkHeader{}, nil, fmt.Errorf("wire: chunk packet too short: %d bytes", len(packet))
	}
	h := ChunkHeader{
		FrameID:     binary.BigEndian.Uint32(packet[0:4]),
		ChunkID:     binary.BigEndian.Uint32(packet[4:8]),
		TotalChunks: binary.BigEndian.Uint32(packet[8:12]),
		ChunkSize:   binary.BigEndian.Uint32(packet[12:16]),
	}
	data := packet[ChunkHeaderSize:]
	if int(h.ChunkSize) != len(data) {
		return ChunkHeader{}, nil, fmt.Errorf("wire: chunk_size %d does not match remaining bytes %d", h.ChunkSize, len(data))
	}
	return h, data, nil
}

// IsChunkTopic reports whether topic carries chunk packets.
func IsChunkTopic(topic string) bool {
	return len(topic) > len(ChunkSuffix) && topic[len(topic)-len(ChunkSuffix):] == ChunkSuffix
}

// ParentTopic strips the "/chunk" suffix, returning the logical topic
// that reassembled payloads are delivered on. The caller must already
// know IsChunkTopic(topic) is true.
func ParentTopic(topic string) string {
	return topic[:len(topic)-len(ChunkSuffix)]
}

// ChunkTopic appends the "/chunk" suffix to a parent topic.
func ChunkTopic(topic string) string {
	return topic + ChunkSuffix
}
