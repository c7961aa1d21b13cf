// Package buffer provides thread-safe containers for handing data between
// goroutines.
//
//   - Queue: an unbounded FIFO whose Push never blocks and whose Pop blocks
//     until an item arrives. Used to move finalized audio chunks off the
//     capture goroutine.
//
//   - Ring: a fixed-capacity window that evicts the oldest item on
//     overflow. Used for rolling transcript context.
//
// Example usage:
//
//	q := buffer.NewQueue[*capture.Chunk](8)
//	go func() {
//	    for {
//	        c, err := q.Pop()
//	        if err != nil {
//	            return // buffer.ErrIteratorDone after CloseWrite
//	        }
//	        process(c)
//	    }
//	}()
//	q.Push(chunk)
//	q.CloseWrite()
package buffer
