package ingest

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"shrike/core"
)

// FileStream couples a format-detected event stream with the underlying
// file handle.
type FileStream struct {
	core.Stream
	f *os.File
}

// Close releases the behavior log.
func (fs *FileStream) Close() error {
	return fs.f.Close()
}

// OpenFile opens a behavior log and selects its decoder by extension:
// .bson, .msgpack and .mp map to their binary framings, everything else
// is treated as JSON Lines.
func OpenFile(path string) (*FileStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open behavior log: %w", err)
	}

	var stream core.Stream
	switch strings.ToLower(filepath.Ext(path)) {
	case ".bson":
		stream = NewBSONReader(bufio.NewReader(f))
	case ".msgpack", ".mp":
		stream = NewMsgpackReader(bufio.NewReader(f))
	default:
		stream = NewJSONLReader(f)
	}
	return &FileStream{Stream: stream, f: f}, nil
}
