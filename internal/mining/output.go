package mining

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
)

// Line graph file extensions.
const (
	LineGraphExt     = ".lg"
	CompressedLGExt  = ".lg.zst"
	outputBufferSize = 1 << 16
)

// output is a line graph file, optionally zstd compressed.
type output struct {
	path string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

// createOutput creates dir/<name>.lg or dir/<name>.lg.zst. With appendTo
// an existing file is extended, compressed output then holds one zstd frame
// per run.
func createOutput(dir, name string, compress, appendTo bool) (*output, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}
	ext := LineGraphExt
	if compress {
		ext = CompressedLGExt
	}
	path := filepath.Join(dir, name+ext)
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appendTo {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return nil, fmt.Errorf("creating %s: %w", path, err)
	}

	o := &output{path: path, f: f}
	var w io.Writer = f
	if compress {
		o.enc, err = zstd.NewWriter(f)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("creating zstd encoder: %w", err)
		}
		w = o.enc
	}
	o.buf = bufio.NewWriterSize(w, outputBufferSize)
	return o, nil
}

func (o *output) Write(p []byte) (int, error) {
	return o.buf.Write(p)
}

// Close flushes all layers and closes the file.
func (o *output) Close() error {
	err := o.buf.Flush()
	if o.enc != nil {
		if cerr := o.enc.Close(); err == nil {
			err = cerr
		}
	}
	if cerr := o.f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("closing %s: %w", o.path, err)
	}
	return nil
}

// OpenLineGraph opens a line graph file for reading, decompressing files
// that end in CompressedLGExt.
func OpenLineGraph(path string) (io.ReadCloser, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening line graph: %w", err)
	}
	if filepath.Ext(path) != ".zst" {
		return f, nil
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("creating zstd decoder: %w", err)
	}
	return &zstdFile{Decoder: dec, f: f}, nil
}

type zstdFile struct {
	*zstd.Decoder
	f *os.File
}

func (z *zstdFile) Close() error {
	z.Decoder.Close()
	return z.f.Close()
}
