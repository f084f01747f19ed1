package task_test

import (
	"errors"
	"testing"
	"time"

	"github.com/aretw0/sagalens/pkg/domain"
	"github.com/aretw0/sagalens/pkg/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTask_Resolve(t *testing.T) {
	tk := task.New()
	assert.False(t, tk.Settled())

	require.NoError(t, tk.Resolve(42))

	select {
	case <-tk.Done():
	case <-time.After(time.Second):
		t.Fatal("Done was not closed")
	}
	v, err := tk.Result()
	assert.NoError(t, err)
	assert.Equal(t, 42, v)
	assert.False(t, tk.Cancelled())
}

func TestTask_SettlesOnce(t *testing.T) {
	tk := task.New()
	require.NoError(t, tk.Reject(errors.New("boom")))

	assert.ErrorIs(t, tk.Resolve(1), domain.ErrTaskSettled)
	assert.ErrorIs(t, tk.Cancel(), domain.ErrTaskSettled)

	_, err := tk.Result()
	assert.EqualError(t, err, "boom")
}

func TestTask_Cancel(t *testing.T) {
	tk := task.New()
	require.NoError(t, tk.Cancel())
	assert.True(t, tk.Cancelled())
}

func TestTask_OnSettle(t *testing.T) {
	tk := task.New()
	calls := 0
	tk.OnSettle(func() { calls++ })
	assert.Equal(t, 0, calls, "callback must wait for settlement")

	require.NoError(t, tk.Resolve("done"))
	assert.Equal(t, 1, calls)

	// Registered after settlement: runs immediately.
	tk.OnSettle(func() { calls++ })
	assert.Equal(t, 2, calls)
}
