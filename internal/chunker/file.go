package chunker

import (
	"os"
	"strings"

	"github.com/blevesearch/mmap-go"

	lumenerrors "github.com/lumenary/lumen/internal/errors"
)

// largeFileThreshold is the size above which ChunkFile switches from a
// direct read to a windowed mmap scan.
const largeFileThreshold = 10 * 1024 * 1024

// mmapWindowSize is the size of each read window used when scanning a large
// file for the last complete paragraph boundary.
const mmapWindowSize = 1024 * 1024

// ChunkFile reads path and splits its contents into chunks. Files at or
// above largeFileThreshold are scanned through an mmap window instead of
// being read into memory whole.
func (c *Chunker) ChunkFile(path string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, lumenerrors.InputErr("cannot stat file for chunking", err).WithDetail("path", path)
	}

	if info.Size() < largeFileThreshold {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, lumenerrors.ExtractionErr("cannot read file for chunking", err).WithDetail("path", path)
		}
		return c.ChunkText(string(data)), nil
	}

	return c.chunkFileMMap(path)
}

// chunkFileMMap scans a large file window by window, emitting chunks for
// every complete paragraph found and carrying any trailing partial
// paragraph forward into the next window.
func (c *Chunker) chunkFileMMap(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, lumenerrors.ExtractionErr("cannot open file for mmap chunking", err).WithDetail("path", path)
	}
	defer f.Close()

	mapped, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, lumenerrors.ExtractionErr("cannot mmap file for chunking", err).WithDetail("path", path)
	}
	defer mapped.Unmap()

	var chunks []string
	var remainder string
	total := len(mapped)

	for offset := 0; offset < total; offset += mmapWindowSize {
		end := offset + mmapWindowSize
		if end > total {
			end = total
		}
		window := remainder + string(mapped[offset:end])

		isLastWindow := end == total
		if isLastWindow {
			chunks = append(chunks, c.ChunkText(window)...)
			remainder = ""
			break
		}

		boundary := strings.LastIndex(window, "\n\n")
		if boundary == -1 {
			// No complete paragraph in this window yet; keep accumulating.
			remainder = window
			continue
		}

		complete := window[:boundary]
		remainder = window[boundary:]
		chunks = append(chunks, c.ChunkText(complete)...)
	}

	if remainder != "" {
		chunks = append(chunks, c.ChunkText(remainder)...)
	}

	return chunks, nil
}
