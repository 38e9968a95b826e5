package pool

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// ErrQueueFull 任务队列已满
var ErrQueueFull = errors.New("job queue is full")

// JobStatus 异步任务状态
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// Job 异步任务
type Job struct {
	ID         string     `json:"id"`
	Kind       string     `json:"kind"`
	Status     JobStatus  `json:"status"`
	Result     any        `json:"result,omitempty"`
	Error      string     `json:"error,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

// JobFunc 任务函数
type JobFunc func(ctx context.Context) (any, error)

// JobRunner 基于协程池的异步任务执行器
//
// 批量任务在单个工作协程中串行执行，状态保存在内存中，
// 超过 retain 个已结束任务时淘汰最早结束的。
type JobRunner struct {
	pool   *WorkerPool
	logger *zap.Logger
	retain int
	// onPanic 任务 panic 时调用，用于指标
	onPanic func()

	mu   sync.RWMutex
	jobs map[string]*Job
}

// NewJobRunner 创建任务执行器
//
// 参数:
//   - workers: 工作协程数
//   - queueSize: 队列容量
//   - retain: 保留的已结束任务数，<= 0 时为 100
func NewJobRunner(workers, queueSize, retain int, logger *zap.Logger) *JobRunner {
	if retain <= 0 {
		retain = 100
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &JobRunner{
		pool:   NewWorkerPool(workers, queueSize, logger),
		logger: logger,
		retain: retain,
		jobs:   make(map[string]*Job),
	}
}

// OnPanic 设置任务 panic 回调，需在 Start 之前调用
func (r *JobRunner) OnPanic(fn func()) {
	r.onPanic = fn
}

// Start 启动执行器
func (r *JobRunner) Start(ctx context.Context) {
	r.pool.Start(ctx)
}

// Stop 停止执行器
func (r *JobRunner) Stop() {
	r.pool.Stop()
}

// Submit 提交任务，队列满时返回 ErrQueueFull，执行器停止后返回 ErrPoolStopped
func (r *JobRunner) Submit(kind string, fn JobFunc) (Job, error) {
	job := &Job{
		ID:        uuid.NewString(),
		Kind:      kind,
		Status:    JobPending,
		CreatedAt: time.Now().UTC(),
	}

	queued := *job

	r.mu.Lock()
	r.jobs[job.ID] = job
	r.mu.Unlock()

	err := r.pool.TrySubmit(func(ctx context.Context) {
		r.execute(ctx, job, fn)
	})
	if err != nil {
		r.mu.Lock()
		delete(r.jobs, job.ID)
		r.mu.Unlock()
		return Job{}, err
	}

	r.logger.Debug("job queued", zap.String("job_id", job.ID), zap.String("kind", kind))
	return queued, nil
}

// Get 获取任务状态
func (r *JobRunner) Get(id string) (Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return Job{}, false
	}
	return *job, true
}

// List 按创建时间倒序列出任务
func (r *JobRunner) List() []Job {
	r.mu.RLock()
	jobs := make([]Job, 0, len(r.jobs))
	for _, job := range r.jobs {
		jobs = append(jobs, *job)
	}
	r.mu.RUnlock()

	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

func (r *JobRunner) execute(ctx context.Context, job *Job, fn JobFunc) {
	started := time.Now().UTC()
	r.mu.Lock()
	job.Status = JobRunning
	job.StartedAt = &started
	r.mu.Unlock()

	var (
		result any
		err    error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("job panicked: %v", p)
				if r.onPanic != nil {
					r.onPanic()
				}
			}
		}()
		result, err = fn(ctx)
	}()

	finished := time.Now().UTC()
	r.mu.Lock()
	job.FinishedAt = &finished
	job.Result = result
	if err != nil {
		job.Status = JobFailed
		job.Error = err.Error()
	} else {
		job.Status = JobSucceeded
	}
	r.evictLocked()
	r.mu.Unlock()

	if err != nil {
		r.logger.Warn("job failed", zap.String("job_id", job.ID), zap.String("kind", job.Kind), zap.Error(err))
		return
	}
	r.logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.String("kind", job.Kind),
		zap.Duration("elapsed", finished.Sub(started)),
	)
}

// evictLocked 淘汰超出保留数量的已结束任务
func (r *JobRunner) evictLocked() {
	var finished []*Job
	for _, job := range r.jobs {
		if job.FinishedAt != nil {
			finished = append(finished, job)
		}
	}
	if len(finished) <= r.retain {
		return
	}
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].FinishedAt.Before(*finished[j].FinishedAt)
	})
	for _, job := range finished[:len(finished)-r.retain] {
		delete(r.jobs, job.ID)
	}
}
