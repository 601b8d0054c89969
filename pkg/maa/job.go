package maa

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"
)

// Poll interval bounds of WaitContext.
const (
	pollMin = 5 * time.Millisecond
	pollMax = 100 * time.Millisecond
)

// jobSource is the handle that issued a job.
type jobSource interface {
	jobStatus(id int64) (int32, error)
	jobWait(id int64) (int32, error)
}

// jobStopper is implemented by sources that can stop their jobs.
type jobStopper interface {
	stopJobs() error
}

// Job is an operation posted to the native library. Jobs are not owned:
// there is nothing to close, but a job becomes StatusInvalid once the
// handle that posted it is closed.
//
// The binding imposes no ordering: jobs of one tasker complete in whatever
// order the native scheduler decides.
type Job struct {
	id        int64
	src       jobSource
	cancelled atomic.Bool
}

func newJob(src jobSource, id int64) *Job {
	return &Job{id: id, src: src}
}

// ID returns the native job id.
func (j *Job) ID() int64 { return j.id }

// Status returns the current status without blocking.
func (j *Job) Status() (Status, error) {
	return j.decode(j.src.jobStatus(j.id))
}

// Wait blocks until the job leaves the pending and running states.
func (j *Job) Wait() (Status, error) {
	return j.decode(j.src.jobWait(j.id))
}

// WaitTimeout is WaitContext with a deadline d from now.
func (j *Job) WaitTimeout(d time.Duration) (Status, error) {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	return j.WaitContext(ctx)
}

// WaitContext polls the job until it is done or ctx ends. On expiry it
// returns the last non-terminal status with an error wrapping ErrTimeout
// and ctx.Err(); a job that finished by then is reported as finished. The
// job itself keeps running.
func (j *Job) WaitContext(ctx context.Context) (Status, error) {
	delay := pollMin
	for {
		s, err := j.Status()
		if err != nil || s.Done() {
			return s, err
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			s, err := j.Status()
			if err != nil || s.Done() {
				return s, err
			}
			return s, fmt.Errorf("%w: job %d: %w", ErrTimeout, j.id, ctx.Err())
		case <-timer.C:
		}
		delay = min(delay*2, pollMax)
	}
}

// Cancel asks the native library to stop the job and returns immediately.
// Cancellation is cooperative; Wait or Status observe the outcome, which is
// StatusCancelled if the job ended in failure. Only tasker jobs can be
// cancelled; other jobs return an error wrapping errors.ErrUnsupported.
//
// The native library stops every job of the tasker, not just this one.
func (j *Job) Cancel() error {
	s, ok := j.src.(jobStopper)
	if !ok {
		return fmt.Errorf("%w: job %d cannot be cancelled", errors.ErrUnsupported, j.id)
	}
	// Marked first so a job that ends right after the stop decodes as
	// cancelled; a rejected stop leaves its outcome untouched.
	j.cancelled.Store(true)
	if err := s.stopJobs(); err != nil {
		j.cancelled.Store(false)
		return err
	}
	return nil
}

func (j *Job) decode(code int32, err error) (Status, error) {
	if errors.Is(err, ErrInvalidHandle) {
		return StatusInvalid, nil
	}
	if err != nil {
		return StatusInvalid, err
	}
	s, err := decodeStatus(code)
	if err != nil {
		return s, err
	}
	if s == StatusFailed && j.cancelled.Load() {
		return StatusCancelled, nil
	}
	return s, nil
}

// TaskJob is a job posted to a Tasker.
type TaskJob struct {
	*Job
	tasker *Tasker
}

// Detail returns the task detail. Call it after the job is done to see
// every node.
func (j *TaskJob) Detail() (*TaskDetail, error) {
	return j.tasker.TaskDetail(j.ID())
}
