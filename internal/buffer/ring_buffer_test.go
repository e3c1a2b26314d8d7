package buffer

import (
	"bytes"
	"testing"
)

func TestNewRingBuffer(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		wantCap  int
	}{
		{"positive", 100, 100},
		{"zero falls back to one", 0, 1},
		{"negative falls back to one", -5, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(tt.capacity)
			if rb.Cap() != tt.wantCap {
				t.Errorf("Cap() = %d, want %d", rb.Cap(), tt.wantCap)
			}
			if rb.Len() != 0 {
				t.Errorf("Len() = %d, want 0", rb.Len())
			}
			if rb.ReadAll() != nil {
				t.Errorf("ReadAll() on empty buffer should be nil")
			}
		})
	}
}

func TestRingBufferKeepsTail(t *testing.T) {
	tests := []struct {
		name        string
		capacity    int
		chunks      []string
		want        string
		wantDropped int64
	}{
		{
			name:     "fits",
			capacity: 16,
			chunks:   []string{"hello\r\n", "world\r\n"},
			want:     "hello\r\nworld\r\n",
		},
		{
			name:        "overflow drops oldest",
			capacity:    8,
			chunks:      []string{"hello\r\n", "world\r\n"},
			want:        "\nworld\r\n",
			wantDropped: 6,
		},
		{
			name:        "single chunk larger than capacity",
			capacity:    5,
			chunks:      []string{"0123456789"},
			want:        "56789",
			wantDropped: 5,
		},
		{
			name:        "start index wraps",
			capacity:    4,
			chunks:      []string{"ab", "cd", "ef", "g", "hij"},
			want:        "ghij",
			wantDropped: 6,
		},
		{
			name:     "empty chunks are no-ops",
			capacity: 10,
			chunks:   []string{"", "ok", ""},
			want:     "ok",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rb := NewRingBuffer(tt.capacity)
			for _, chunk := range tt.chunks {
				n, err := rb.Write([]byte(chunk))
				if err != nil {
					t.Fatalf("Write(%q) error: %v", chunk, err)
				}
				if n != len(chunk) {
					t.Fatalf("Write(%q) = %d, want %d", chunk, n, len(chunk))
				}
			}

			if got := rb.ReadAll(); !bytes.Equal(got, []byte(tt.want)) {
				t.Errorf("ReadAll() = %q, want %q", got, tt.want)
			}
			if rb.Len() != len(tt.want) {
				t.Errorf("Len() = %d, want %d", rb.Len(), len(tt.want))
			}
			if rb.Dropped() != tt.wantDropped {
				t.Errorf("Dropped() = %d, want %d", rb.Dropped(), tt.wantDropped)
			}
		})
	}
}

func TestRingBufferReadAllCopies(t *testing.T) {
	rb := NewRingBuffer(10)
	rb.Write([]byte("test"))

	data := rb.ReadAll()
	data[0] = 'X'

	if got := rb.ReadAll(); !bytes.Equal(got, []byte("test")) {
		t.Errorf("ReadAll() = %q after mutating a previous result", got)
	}
}

func TestRingBufferClear(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte("hello"))
	rb.Clear()

	if rb.Len() != 0 || rb.ReadAll() != nil {
		t.Fatalf("buffer not empty after Clear")
	}
	if rb.Dropped() != 0 {
		t.Errorf("Dropped() = %d after Clear, want 0", rb.Dropped())
	}

	rb.Write([]byte("world"))
	if got := rb.ReadAll(); !bytes.Equal(got, []byte("orld")) {
		t.Errorf("ReadAll() = %q, want %q", got, "orld")
	}
	if rb.Dropped() != 1 {
		t.Errorf("Dropped() = %d, want 1", rb.Dropped())
	}
}
