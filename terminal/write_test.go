package terminal

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkWriter accepts at most limit bytes per call and stalls every stallEvery-th call.
type chunkWriter struct {
	limit      int
	stallEvery int
	calls      int
	failAfter  int
	failErr    error
	out        []byte
}

func (w *chunkWriter) Write(data []byte) (int, error) {
	w.calls++
	if w.failAfter > 0 && len(w.out) >= w.failAfter {
		return 0, w.failErr
	}
	if w.stallEvery > 0 && w.calls%w.stallEvery == 0 {
		return 0, nil
	}

	n := min(len(data), w.limit)
	w.out = append(w.out, data[:n]...)

	return n, nil
}

func TestWriteAll_PartialWrites(t *testing.T) {
	w := &chunkWriter{limit: 4, stallEvery: 3}
	data := []byte("the quick brown fox jumps over the lazy dog")

	n, err := WriteAll(context.Background(), w, data)
	require.NoError(t, err)
	assert.Equal(t, len(data), n)
	assert.Equal(t, data, w.out)
}

func TestWriteAll_DefinitiveFailure(t *testing.T) {
	w := &chunkWriter{limit: 4, failAfter: 8, failErr: fmt.Errorf("uart: write: %w", ErrDeviceGone)}

	n, err := WriteAll(context.Background(), w, make([]byte, 20))
	assert.ErrorIs(t, err, ErrDeviceGone)
	assert.Equal(t, 8, n)
	assert.Len(t, w.out, n, "reported count matches what the transport accepted")
}

func TestWriteAll_ContextEndsOnStall(t *testing.T) {
	w := &chunkWriter{limit: 0}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	n, err := WriteAll(ctx, w, []byte("abc"))
	assert.Zero(t, n)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestWriteAll_Empty(t *testing.T) {
	n, err := WriteAll(context.Background(), &chunkWriter{}, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestError_String(t *testing.T) {
	assert.Equal(t, "BufferOverflow", BufferOverflow.String())
	assert.Equal(t, "ChecksumError", ChecksumError.String())
	assert.Equal(t, "UnexpectedControlFlow", UnexpectedControlFlow.String())
	assert.Equal(t, "DeviceGone", DeviceGone.String())
	assert.Equal(t, "Error(9)", Error(9).String())

	assert.True(t, ChecksumError.Transient())
	assert.False(t, DeviceGone.Transient())
	assert.True(t, DeviceGone.Valid())
	assert.False(t, Error(-1).Valid())
}

func TestConfig_Options(t *testing.T) {
	cfg, err := NewConfig(WithName("modem"), WithRxBufferSize(64), WithCloseTimeout(time.Second))
	require.NoError(t, err)
	assert.Equal(t, "modem", cfg.Name())
	assert.Equal(t, 64, cfg.RxBufferSize())
	assert.Equal(t, time.Second, cfg.CloseTimeout())
	assert.NotNil(t, cfg.GetLogger())

	_, err = NewConfig(WithRxBufferSize(0))
	assert.Error(t, err)
	_, err = NewConfig(WithCloseTimeout(0))
	assert.Error(t, err)
	_, err = NewConfig(WithLogger(nil))
	assert.Error(t, err)
}

func TestAtomicState(t *testing.T) {
	var st AtomicState
	assert.Equal(t, Constructed, st.Get())
	assert.False(t, st.ToStopped())
	assert.True(t, st.ToActive())
	assert.False(t, st.ToActive())
	assert.True(t, st.ToStopped())
	assert.True(t, st.ToActive())
	assert.Equal(t, Active, st.ToClosed())
	assert.False(t, st.ToActive())
	assert.Equal(t, "Closed", st.String())
}
