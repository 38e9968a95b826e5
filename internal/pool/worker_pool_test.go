package pool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerPool(t *testing.T) {
	t.Run("执行全部任务", func(t *testing.T) {
		p := NewWorkerPool(2, 10, nil)
		p.Start(context.Background())

		var n atomic.Int32
		for i := 0; i < 10; i++ {
			require.NoError(t, p.TrySubmit(func(context.Context) { n.Add(1) }))
		}
		p.Stop()
		assert.Equal(t, int32(10), n.Load())
	})

	t.Run("panic不影响后续任务", func(t *testing.T) {
		p := NewWorkerPool(1, 4, nil)
		p.Start(context.Background())

		var ran atomic.Bool
		require.NoError(t, p.TrySubmit(func(context.Context) { panic("boom") }))
		require.NoError(t, p.TrySubmit(func(context.Context) { ran.Store(true) }))
		p.Stop()

		assert.True(t, ran.Load())
	})

	t.Run("停止后拒绝提交", func(t *testing.T) {
		p := NewWorkerPool(1, 1, nil)
		p.Start(context.Background())
		p.Stop()
		p.Stop()

		assert.ErrorIs(t, p.TrySubmit(func(context.Context) {}), ErrPoolStopped)
	})

	t.Run("队列满时TrySubmit失败", func(t *testing.T) {
		p := NewWorkerPool(1, 1, nil)
		block := make(chan struct{})
		started := make(chan struct{})
		p.Start(context.Background())

		require.NoError(t, p.TrySubmit(func(context.Context) { close(started); <-block }))
		<-started
		require.NoError(t, p.TrySubmit(func(context.Context) {}))
		assert.ErrorIs(t, p.TrySubmit(func(context.Context) {}), ErrQueueFull)

		close(block)
		p.Stop()
	})
}

func TestJobRunner(t *testing.T) {
	t.Run("成功与失败状态", func(t *testing.T) {
		r := NewJobRunner(1, 4, 0, nil)
		r.Start(context.Background())

		ok, err := r.Submit("batch_create", func(context.Context) (any, error) { return 3, nil })
		require.NoError(t, err)
		assert.Equal(t, JobPending, ok.Status)
		assert.NotEmpty(t, ok.ID)

		bad, err := r.Submit("batch_delete", func(context.Context) (any, error) { return nil, errors.New("disk full") })
		require.NoError(t, err)

		r.Stop()

		got, found := r.Get(ok.ID)
		require.True(t, found)
		assert.Equal(t, JobSucceeded, got.Status)
		assert.Equal(t, 3, got.Result)
		assert.NotNil(t, got.FinishedAt)

		got, found = r.Get(bad.ID)
		require.True(t, found)
		assert.Equal(t, JobFailed, got.Status)
		assert.Equal(t, "disk full", got.Error)

		assert.Len(t, r.List(), 2)
	})

	t.Run("任务panic记为失败", func(t *testing.T) {
		r := NewJobRunner(1, 1, 0, nil)
		var panics atomic.Int32
		r.OnPanic(func() { panics.Add(1) })
		r.Start(context.Background())
		job, err := r.Submit("x", func(context.Context) (any, error) { panic("boom") })
		require.NoError(t, err)
		r.Stop()

		got, _ := r.Get(job.ID)
		assert.Equal(t, JobFailed, got.Status)
		assert.Contains(t, got.Error, "boom")
		assert.Equal(t, int32(1), panics.Load())
	})

	t.Run("停止后提交返回ErrPoolStopped", func(t *testing.T) {
		r := NewJobRunner(1, 1, 0, nil)
		r.Start(context.Background())
		r.Stop()
		_, err := r.Submit("x", func(context.Context) (any, error) { return nil, nil })
		assert.ErrorIs(t, err, ErrPoolStopped)
		assert.Empty(t, r.List())
	})

	t.Run("队列满返回ErrQueueFull", func(t *testing.T) {
		r := NewJobRunner(1, 0, 0, nil)
		_, err := r.Submit("x", func(context.Context) (any, error) { return nil, nil })
		assert.ErrorIs(t, err, ErrQueueFull)
		assert.Empty(t, r.List())
	})

	t.Run("淘汰最早结束的任务", func(t *testing.T) {
		r := NewJobRunner(1, 8, 2, nil)
		r.Start(context.Background())
		var ids []string
		for i := 0; i < 4; i++ {
			job, err := r.Submit("x", func(context.Context) (any, error) {
				time.Sleep(time.Millisecond)
				return nil, nil
			})
			require.NoError(t, err)
			ids = append(ids, job.ID)
		}
		r.Stop()

		assert.Len(t, r.List(), 2)
		_, found := r.Get(ids[0])
		assert.False(t, found)
		_, found = r.Get(ids[3])
		assert.True(t, found)
	})
}
