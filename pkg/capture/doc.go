// Package capture records audio from a Source and cuts it into fixed-length
// chunks.
//
// A Session runs one goroutine that owns the ChunkWriter. The source pushes
// frames over a bounded channel; a ticker triggers rotation. Every chunk with
// audio in it is handed to the ChunkHandler exactly once, in order, including
// the partial chunk flushed by Stop.
//
// Example usage:
//
//	src, err := capture.OpenWAV("meeting.wav", 1)
//	if err != nil {
//	    return err
//	}
//	s := capture.NewSession(src, capture.ChunkHandlerFunc(func(c *capture.Chunk) {
//	    queue.Push(c)
//	}), capture.Options{Period: 30 * time.Second})
//	if err := s.Start(ctx); err != nil {
//	    return err
//	}
//	defer s.Stop()
package capture
