package terminal

import (
	"context"
	"time"

	"github.com/arloliu/go-terminal/internal/pool"
)

const (
	minRetryBackoff = time.Millisecond
	maxRetryBackoff = 50 * time.Millisecond
)

// WriteAll writes data through repeated Write attempts until every byte was accepted,
// a definitive failure occurs or ctx is done. Attempts that make no progress are
// retried with an exponential backoff.
//
// It returns the number of bytes accepted; on error that count tells the caller
// exactly which prefix reached the transport.
func WriteAll(ctx context.Context, w Writer, data []byte) (int, error) {
	written := 0
	backoff := minRetryBackoff

	for written < len(data) {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		n, err := w.Write(data[written:])
		if n > 0 {
			written += n
		}
		if err != nil {
			return written, err
		}

		if n > 0 {
			backoff = minRetryBackoff
			continue
		}

		if err := pool.Sleep(ctx, backoff); err != nil {
			return written, err
		}
		backoff = min(backoff*2, maxRetryBackoff)
	}

	return written, nil
}
