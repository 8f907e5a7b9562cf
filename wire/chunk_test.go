package wire

import (
	"bytes"
	"testing"
)

func TestChunkEncodeDecodeRoundTrip(t *testing.T) {
	h := ChunkHeader{FrameID: 42, ChunkID: 1, TotalChunks: 5, ChunkSize: 4}
	data := []byte("abcd")

	packet := EncodeChunk(h, data)
	if len(packet) != ChunkHeaderSize+len(data) {
		t.Fatalf("packet len = %d, want %d", len(packet), ChunkHeaderSize+len(data))
	}

	gotHeader, gotData, err := DecodeChunk(packet)
	if err != nil {
		t.Fatalf("DecodeChunk: %v", err)
	}
	if gotHeader != h {
		t.Errorf("header = %+v, want %+v", gotHeader, h)
	}
	if !bytes.Equal(gotData, data) {
		t.Errorf("data = %q, want %q", gotData, data)
	}
}

func TestChunkDecodeTooShort(t *testing.T) {
	if _, _, err := DecodeChunk(make([]byte, 10)); err == nil {
		t.Error("expected error for packet shorter than header")
	}
}

func TestChunkDecodeSizeMismatch(t *testing.T) {
	h := ChunkHeader{FrameID: 1, ChunkID: 0, TotalChunks: 1, ChunkSize: 999}
	packet := EncodeChunk(h, []byte("short"))
	// Corrupt the declared chunk_size to disagree with the actual data.
	packet[15] = 0xFF
	if _, _, err := DecodeChunk(packet); err == nil {
		t.Error("expected error for chunk_size mismatch")
	}
}

func TestIsChunkTopicAndParent(t *testing.T) {
	cases := []struct {
		topic   string
		isChunk bool
		parent  string
	}{
		{"visualizer/map/chunk", true, "visualizer/map"},
		{"visualizer/map", false, ""},
		{"/chunk", false, ""},
		{"a/chunk", true, "a"},
	}
	for _, c := range cases {
		if got := IsChunkTopic(c.topic); got != c.isChunk {
			t.Errorf("IsChunkTopic(%q) = %v, want %v", c.topic, got, c.isChunk)
		}
		if c.isChunk {
			if got := ParentTopic(c.topic); got != c.parent {
				t.Errorf("ParentTopic(%q) = %q, want %q", c.topic, got, c.parent)
			}
			if got := ChunkTopic(c.parent); got != c.topic {
				t.Errorf("ChunkTopic(%q) = %q, want %q", c.parent, got, c.topic)
			}
		}
	}
}

func TestChunkHeaderBigEndian(t *testing.T) {
	h := ChunkHeader{FrameID: 0x01020304, ChunkID: 0, TotalChunks: 1, ChunkSize: 0}
	packet := EncodeChunk(h, nil)
	want := []byte{0x01, 0x02, 0x03, 0x04}
	if !bytes.Equal(packet[0:4], want) {
		t.Errorf("frame_id bytes = %x, want %x", packet[0:4], want)
	}
}
