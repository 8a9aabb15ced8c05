package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ignite/listmonk-relay/internal/mailersend"
	"github.com/ignite/listmonk-relay/internal/pkg/logger"
)

// ErrProviderRequestFailed is carried by every DispatchError.
var ErrProviderRequestFailed = errors.New("provider request failed")

// BatchSender sends one chunk as a single provider request.
type BatchSender interface {
	SendBatch(ctx context.Context, emails []mailersend.Email) (*mailersend.SendResult, error)
}

// ChunkArchive keeps a copy of chunks the provider did not accept.
type ChunkArchive interface {
	ArchiveChunk(ctx context.Context, cycleID string, index int, emails []mailersend.Email, reason string) error
}

// ChunkFailure describes one chunk that was not accepted.
type ChunkFailure struct {
	Index  int
	Size   int
	Reason string
}

// DispatchError aggregates the failed chunks of one Dispatch call.
type DispatchError struct {
	Failures []ChunkFailure
}

func (e *DispatchError) Error() string {
	lines := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		lines[i] = f.Reason
	}
	return strings.Join(lines, "\n")
}

func (e *DispatchError) Unwrap() error { return ErrProviderRequestFailed }

// BulkDispatcher partitions a batch into chunks and sends them
// concurrently under a rate limiter.
type BulkDispatcher struct {
	sender         BatchSender
	limiter        RateLimiter
	archive        ChunkArchive
	acquireTimeout time.Duration
}

// NewBulkDispatcher creates a dispatcher. archive may be nil.
func NewBulkDispatcher(sender BatchSender, limiter RateLimiter, archive ChunkArchive, acquireTimeout time.Duration) *BulkDispatcher {
	return &BulkDispatcher{
		sender:         sender,
		limiter:        limiter,
		archive:        archive,
		acquireTimeout: acquireTimeout,
	}
}

// Chunk splits emails into contiguous slices of at most size elements.
func Chunk(emails []mailersend.Email, size int) [][]mailersend.Email {
	if size <= 0 || len(emails) == 0 {
		return nil
	}
	chunks := make([][]mailersend.Email, 0, (len(emails)+size-1)/size)
	for start := 0; start < len(emails); start += size {
		end := min(start+size, len(emails))
		chunks = append(chunks, emails[start:end])
	}
	return chunks
}

// Dispatch sends every chunk and waits for all of them. A failed chunk does
// not cancel its siblings and is never retried.
func (d *BulkDispatcher) Dispatch(ctx context.Context, emails []mailersend.Email, chunkSize int) error {
	return d.dispatch(ctx, "", emails, chunkSize)
}

func (d *BulkDispatcher) dispatch(ctx context.Context, cycleID string, emails []mailersend.Email, chunkSize int) error {
	if chunkSize <= 0 {
		return fmt.Errorf("invalid chunk size %d", chunkSize)
	}

	chunks := Chunk(emails, chunkSize)
	results := make([]*ChunkFailure, len(chunks))

	var wg sync.WaitGroup
	for i, chunk := range chunks {
		wg.Add(1)
		go func(index int, chunk []mailersend.Email) {
			defer wg.Done()
			results[index] = d.sendChunk(ctx, cycleID, index, chunk)
		}(i, chunk)
	}
	wg.Wait()

	var failures []ChunkFailure
	for _, f := range results {
		if f != nil {
			failures = append(failures, *f)
		}
	}
	if len(failures) > 0 {
		return &DispatchError{Failures: failures}
	}
	return nil
}

func (d *BulkDispatcher) sendChunk(ctx context.Context, cycleID string, index int, chunk []mailersend.Email) *ChunkFailure {
	if !d.limiter.Acquire(ctx, d.acquireTimeout) {
		logger.Warn("rate limiter wait exceeded, sending anyway",
			"cycle_id", cycleID, "chunk", index, "waited", d.acquireTimeout.String())
	}

	result, err := d.send(ctx, chunk)

	var reason string
	switch {
	case err != nil:
		reason = fmt.Sprintf("provider request failed: %v", err)
	case !result.Success():
		reason = fmt.Sprintf("provider response: %s %s", result.Status, result.Message)
	default:
		logger.Info("chunk accepted",
			"cycle_id", cycleID, "chunk", index, "count", len(chunk), "bulk_email_id", result.BulkEmailID)
		return nil
	}

	logger.Error("chunk rejected", "cycle_id", cycleID, "chunk", index, "count", len(chunk), "error", reason)
	if d.archive != nil {
		if aerr := d.archive.ArchiveChunk(ctx, cycleID, index, chunk, reason); aerr != nil {
			logger.Warn("failed to archive rejected chunk", "cycle_id", cycleID, "chunk", index, "error", aerr)
		}
	}
	return &ChunkFailure{Index: index, Size: len(chunk), Reason: reason}
}

// send calls the sender and reports a panic or an empty answer as an error.
func (d *BulkDispatcher) send(ctx context.Context, chunk []mailersend.Email) (result *mailersend.SendResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result, err = nil, fmt.Errorf("sender panic: %v", r)
		}
	}()

	result, err = d.sender.SendBatch(ctx, chunk)
	if err == nil && result == nil {
		err = errors.New("empty provider response")
	}
	return result, err
}
