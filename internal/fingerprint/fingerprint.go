// Package fingerprint computes deterministic content hashes for model files.
// Files are streamed through the hash in bounded chunks so multi-gigabyte
// checkpoints never need to reside in memory.
package fingerprint

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// chunkSize bounds per-read memory while keeping syscall overhead low for
// multi-gigabyte files.
const chunkSize = 512 * 1024

// File computes the SHA-256 fingerprint of the file at path. The context is
// checked between chunks so a cancelled scan stops within one chunk's worth
// of I/O.
func File(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	return Reader(ctx, f)
}

// Reader computes the SHA-256 fingerprint of everything readable from r.
func Reader(ctx context.Context, r io.Reader) (string, error) {
	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		n, err := r.Read(buf)
		if n > 0 {
			if _, werr := hasher.Write(buf[:n]); werr != nil {
				return "", fmt.Errorf("hash write: %w", werr)
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("read: %w", err)
		}
	}
	return hex.EncodeToString(hasher.Sum(nil)), nil
}
