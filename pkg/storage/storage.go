// Package storage archives finalized chunks as WAV files on local disk or
// in an S3-compatible object store.
//
// The archive holds audio only. Transcripts are never written.
package storage

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/haivivi/loopscribe/pkg/audio/wav"
	"github.com/haivivi/loopscribe/pkg/capture"
)

// Store writes whole objects.
//
// Paths are forward-slash separated and relative to the store root.
// Implementations must be safe for concurrent use.
type Store interface {
	// Put stores data at path, replacing any existing object. Parent
	// directories are created as needed.
	Put(ctx context.Context, path string, data []byte, contentType string) error

	// Exists reports whether an object exists at path.
	Exists(ctx context.Context, path string) (bool, error)
}

// ChunkArchive writes each chunk as <Prefix>/<chunk name>.
type ChunkArchive struct {
	Store Store

	// Prefix groups the chunks of a session, typically the session id.
	Prefix string
}

// Archive encodes c as WAV and stores it. If an object with the chunk name
// already exists, the sequence number is appended to the name.
func (a *ChunkArchive) Archive(ctx context.Context, c *capture.Chunk) error {
	data, err := wav.Marshal(c.Format, c.Data)
	if err != nil {
		return fmt.Errorf("storage: encode chunk %d: %w", c.Seq, err)
	}
	p := path.Join(a.Prefix, c.Name())
	exists, err := a.Store.Exists(ctx, p)
	if err != nil {
		return fmt.Errorf("storage: stat %s: %w", p, err)
	}
	if exists {
		p = fmt.Sprintf("%s_%d.wav", strings.TrimSuffix(p, ".wav"), c.Seq)
	}
	if err := a.Store.Put(ctx, p, data, "audio/wav"); err != nil {
		return fmt.Errorf("storage: put %s: %w", p, err)
	}
	return nil
}
