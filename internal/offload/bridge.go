// Package offload executes analytics folds on a dedicated worker
// goroutine so heavy aggregation never contends with request handling.
// Calls cross the boundary as plain serializable request/response
// values; when the worker is not running the bridge falls back to
// invoking the same pure functions in the caller's goroutine, so only
// the execution location changes.
package offload

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pagemark/pagemark-server/internal/analytics"
	"github.com/pagemark/pagemark-server/internal/domain"
)

// Fn names an analytics operation callable through the bridge.
type Fn string

// Bridge operations.
const (
	FnTimeSpentOnDay    Fn = "time_spent_on_day"
	FnTotalWordsRead    Fn = "total_words_read"
	FnReadingSpeed      Fn = "reading_speed"
	FnDailyReadingStats Fn = "daily_reading_stats"
	FnCategoryStats     Fn = "category_stats"
	// FnSortedCategoryStats is FnCategoryStats flattened into display
	// order for responses that render the categories directly.
	FnSortedCategoryStats Fn = "sorted_category_stats"
)

// Args carries every argument any bridge operation needs. All fields
// are plain data; nothing live crosses the worker boundary.
type Args struct {
	Events    []*domain.ReadingEvent `json:"events"`
	Date      time.Time              `json:"date,omitzero"`
	Now       time.Time              `json:"now,omitzero"`
	Days      int                    `json:"days,omitempty"`
	Overrides map[string]int         `json:"overrides,omitempty"`
}

// Request is one bridge call.
type Request struct {
	Fn   Fn   `json:"fn"`
	Args Args `json:"args"`
}

// Response is the result of one bridge call: a value on success, an
// error string otherwise. Exactly one response per request.
type Response struct {
	OK    bool   `json:"ok"`
	Value any    `json:"value,omitempty"`
	Err   string `json:"error,omitempty"`
}

// pending pairs a request with its reply channel (the call's future).
type pending struct {
	req   Request
	reply chan Response
}

// Bridge owns the worker goroutine. Construct exactly one per process
// and share it; all callers multiplex over the same request channel.
type Bridge struct {
	logger *slog.Logger

	requests chan pending
	done     chan struct{}

	running   atomic.Bool
	startOnce sync.Once
	stopOnce  sync.Once
}

// New creates a bridge. The worker does not run until Start is called;
// until then every call takes the synchronous fallback path.
func New(logger *slog.Logger) *Bridge {
	return &Bridge{
		logger:   logger,
		requests: make(chan pending, 16),
		done:     make(chan struct{}),
	}
}

// Start launches the worker goroutine. Subsequent calls are no-ops.
func (b *Bridge) Start() {
	b.startOnce.Do(func() {
		b.running.Store(true)
		go b.worker()
		if b.logger != nil {
			b.logger.Info("analytics offload worker started")
		}
	})
}

// Stop shuts the worker down. In-flight requests complete; later calls
// fall back to synchronous execution.
func (b *Bridge) Stop() {
	b.stopOnce.Do(func() {
		b.running.Store(false)
		close(b.done)
	})
}

// Call executes one operation, suspending the caller until the worker
// replies or ctx is done. No timeout is imposed here; callers that need
// bounded latency bring their own deadline.
func (b *Bridge) Call(ctx context.Context, req Request) (any, error) {
	resp := b.send(ctx, req)
	if !resp.OK {
		return nil, fmt.Errorf("offload %s: %s", req.Fn, resp.Err)
	}
	return resp.Value, nil
}

// send routes a request to the worker, or dispatches inline when the
// worker is unavailable. Unavailability is recovered here and never
// surfaced to the caller as a hard failure.
func (b *Bridge) send(ctx context.Context, req Request) Response {
	if !b.running.Load() {
		return dispatch(req)
	}

	p := pending{req: req, reply: make(chan Response, 1)}

	select {
	case b.requests <- p:
	case <-b.done:
		// Worker stopped while we were queueing; degrade to inline.
		return dispatch(req)
	case <-ctx.Done():
		return Response{OK: false, Err: ctx.Err().Error()}
	}

	select {
	case resp := <-p.reply:
		return resp
	case <-b.done:
		// Stop won the race after we queued; the worker's drain pass
		// may or may not have reached this request. Prefer a reply if
		// one landed, otherwise run inline. The folds are pure, so a
		// duplicate execution is harmless and the orphaned reply stays
		// in its buffered channel.
		select {
		case resp := <-p.reply:
			return resp
		default:
			return dispatch(req)
		}
	case <-ctx.Done():
		// The worker still finishes the request; the caller has
		// discarded the future.
		return Response{OK: false, Err: ctx.Err().Error()}
	}
}

// worker is the single isolated execution context. One request, one
// response, no streaming.
func (b *Bridge) worker() {
	for {
		select {
		case p := <-b.requests:
			p.reply <- safeDispatch(p.req)
		case <-b.done:
			// Drain anything queued before shutdown.
			for {
				select {
				case p := <-b.requests:
					p.reply <- safeDispatch(p.req)
				default:
					if b.logger != nil {
						b.logger.Info("analytics offload worker stopped")
					}
					return
				}
			}
		}
	}
}

// safeDispatch converts a panicking fold into an error response so a
// bad input can never take the worker down.
func safeDispatch(req Request) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			resp = Response{OK: false, Err: fmt.Sprintf("panic in %s: %v", req.Fn, r)}
		}
	}()
	return dispatch(req)
}

// dispatch runs one operation. Used by both the worker and the
// synchronous fallback path; behavior is identical in both.
func dispatch(req Request) Response {
	switch req.Fn {
	case FnTimeSpentOnDay:
		return Response{OK: true, Value: analytics.TimeSpentOnDay(req.Args.Date, req.Args.Events)}
	case FnTotalWordsRead:
		return Response{OK: true, Value: analytics.TotalWordsRead(req.Args.Events, req.Args.Overrides)}
	case FnReadingSpeed:
		return Response{OK: true, Value: analytics.ReadingSpeed(req.Args.Events)}
	case FnDailyReadingStats:
		return Response{OK: true, Value: analytics.DailyReadingStats(req.Args.Now, req.Args.Events, req.Args.Days)}
	case FnCategoryStats:
		return Response{OK: true, Value: analytics.CategoryStats(req.Args.Events)}
	case FnSortedCategoryStats:
		return Response{OK: true, Value: analytics.SortedCategoryStats(req.Args.Events)}
	default:
		return Response{OK: false, Err: fmt.Sprintf("unknown function %q", req.Fn)}
	}
}
