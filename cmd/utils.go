package cmd

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/h2non/filetype"
)

// openInput opens a log source: a file path, or stdin for "-" / no arg.
// Files are sniffed first so a wheel or archive passed by mistake fails
// fast instead of producing thousands of unknown events.
func openInput(path string) (io.ReadCloser, string, error) {
	if path == "" || path == "-" {
		return io.NopCloser(os.Stdin), "stdin", nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open log: %w", err)
	}

	header := make([]byte, 512)
	n, rerr := io.ReadFull(f, header)
	if rerr != nil && rerr != io.ErrUnexpectedEOF && rerr != io.EOF {
		f.Close()
		return nil, "", fmt.Errorf("failed to read log: %w", rerr)
	}
	header = header[:n]

	if kind, _ := filetype.Match(header); kind != filetype.Unknown {
		f.Close()
		return nil, "", fmt.Errorf("%s is a %s file, not a text log", path, kind.Extension)
	}

	return &headerReader{
		Reader: io.MultiReader(bytes.NewReader(header), f),
		closer: f,
	}, path, nil
}

type headerReader struct {
	io.Reader
	closer io.Closer
}

func (h *headerReader) Close() error { return h.closer.Close() }

// eachLine feeds every line of r to fn.
func eachLine(r io.Reader, fn func(line string)) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		fn(scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}
