package pointcloud

import (
	"context"

	"github.com/edaniels/golog"
	goutils "go.viam.com/utils"
)

// SplitJob is a single in-flight asynchronous decode-and-split of one pcd
// buffer. It completes exactly once, with either a result or an error, and its
// goroutine exits on completion, error or cancellation; there is nothing to
// poll and nothing left running afterwards.
type SplitJob struct {
	cancel context.CancelFunc
	done   chan struct{}
	res    *SplitResult
	err    error
}

// StartSplitPCD begins decoding the buffer off the calling goroutine.
// Ownership of the buffer transfers to the job until it completes or is
// cancelled; the caller must not mutate it in between.
func StartSplitPCD(ctx context.Context, raw []byte, cfg FloorConfig, logger golog.Logger) *SplitJob {
	ctx, cancel := context.WithCancel(ctx)
	job := &SplitJob{cancel: cancel, done: make(chan struct{})}
	goutils.PanicCapturingGo(func() {
		defer cancel()
		defer close(job.done)
		job.res, job.err = splitPCD(ctx, raw, cfg)
		if job.err != nil {
			logger.Debugw("pcd split failed", "error", job.err)
		}
	})
	return job
}

// Result blocks until the job completes or the given context is done. It may
// be called any number of times; every call observes the same outcome.
func (job *SplitJob) Result(ctx context.Context) (*SplitResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-job.done:
		return job.res, job.err
	}
}

// Cancel abandons the job. The decode goroutine stops at its next context
// check and a cancelled job's Result reports context.Canceled.
func (job *SplitJob) Cancel() {
	job.cancel()
}
