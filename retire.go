package memcache

import (
	"sync"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/memcache/internal/staging"
)

// retireTask is work deferred until the GPU has finished the submission it
// was recorded into.
type retireTask interface {
	// retire runs after the submission completed.
	retire() error

	// abandon releases the task's resources when its submission never
	// reached the GPU.
	abandon()
}

// scheduledTask is a retire task stamped with its submission index.
type scheduledTask struct {
	submission uint64
	task       retireTask
}

// retireQueue runs retire tasks in the order their submissions were made.
//
// Tasks added while a submission is being recorded stay open until seal
// stamps them with the index returned by the queue. Submission indices
// increase, so the sealed list is ordered by completion as well.
type retireQueue struct {
	mu     sync.Mutex
	open   []retireTask
	sealed []scheduledTask
}

// add queues a task against the submission being recorded.
func (q *retireQueue) add(t retireTask) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.open = append(q.open, t)
}

// seal stamps every open task with the submission index.
func (q *retireQueue) seal(submission uint64) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, t := range q.open {
		q.sealed = append(q.sealed, scheduledTask{submission: submission, task: t})
	}
	clear(q.open)
	q.open = q.open[:0]
}

// takeOpen removes and returns the tasks of the submission being recorded.
func (q *retireQueue) takeOpen() []retireTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := q.open
	q.open = nil
	return tasks
}

// ready removes and returns, in order, the sealed tasks whose submission
// index is at most completed.
func (q *retireQueue) ready(completed uint64) []retireTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := 0
	for n < len(q.sealed) && q.sealed[n].submission <= completed {
		n++
	}
	if n == 0 {
		return nil
	}
	tasks := make([]retireTask, n)
	for i := range n {
		tasks[i] = q.sealed[i].task
	}
	q.sealed = append(q.sealed[:0], q.sealed[n:]...)
	return tasks
}

// takeSealed removes and returns every sealed task.
func (q *retireQueue) takeSealed() []retireTask {
	q.mu.Lock()
	defer q.mu.Unlock()

	tasks := make([]retireTask, len(q.sealed))
	for i, s := range q.sealed {
		tasks[i] = s.task
	}
	q.sealed = nil
	return tasks
}

// pending returns the number of sealed tasks waiting for their submission.
func (q *retireQueue) pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.sealed)
}

// releaseStagingTask returns an upload staging buffer to its pool once the
// copy out of it has executed.
type releaseStagingTask struct {
	pool *staging.Pool
	buf  *staging.Buffer
}

func (t *releaseStagingTask) retire() error {
	return t.pool.Release(t.buf)
}

func (t *releaseStagingTask) abandon() {
	_ = t.pool.Release(t.buf)
}

// freeCommandBufferTask hands a finished command buffer back to the device.
type freeCommandBufferTask struct {
	device hal.Device
	cmd    hal.CommandBuffer
}

func (t *freeCommandBufferTask) retire() error {
	t.device.FreeCommandBuffer(t.cmd)
	return nil
}

func (t *freeCommandBufferTask) abandon() {
	t.device.FreeCommandBuffer(t.cmd)
}
