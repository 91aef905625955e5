package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/JonMunkholm/voucherdash/internal/logging"
	"github.com/google/uuid"
)

// ErrSubmitRefused is returned when the flow is not in a submittable state.
// The accompanying Snapshot carries the notice to show.
var ErrSubmitRefused = errors.New("submission refused")

// IngestionReport is a validated backend response for an import.
type IngestionReport struct {
	Success bool
	Message string
	Summary IngestionSummary
}

// Submitter relays the original file to the ingestion endpoint.
// An empty credential must fail with ErrUnauthorized without network I/O.
type Submitter interface {
	ImportVouchers(ctx context.Context, credential string, file RawFile) (*IngestionReport, error)
}

// HistoryStore persists import attempts.
type HistoryStore interface {
	Record(ctx context.Context, attempt ImportAttempt) error
	Recent(ctx context.Context, limit int) ([]ImportAttempt, error)
	PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// ServiceConfig tunes the import service. Zero values fall back to defaults.
type ServiceConfig struct {
	MaxConcurrent int
	MaxWait       time.Duration
	SubmitTimeout time.Duration
	FlowTTL       time.Duration
}

const (
	defaultSubmitTimeout = 10 * time.Minute
	defaultFlowTTL       = time.Hour
)

// Service runs import flows. Each flow belongs to one session owner and is
// driven exclusively through Reduce.
type Service struct {
	submitter Submitter
	history   HistoryStore
	limiter   *SubmitLimiter
	cfg       ServiceConfig

	mu    sync.RWMutex
	flows map[string]*activeFlow

	inflight sync.WaitGroup
}

type activeFlow struct {
	ID    string
	Owner string

	mu       sync.Mutex
	flow     Flow
	cancel   context.CancelCauseFunc
	done     chan struct{}
	lastSeen time.Time
}

// NewService creates a Service. history may be nil.
func NewService(submitter Submitter, history HistoryStore, cfg ServiceConfig) *Service {
	if cfg.SubmitTimeout <= 0 {
		cfg.SubmitTimeout = defaultSubmitTimeout
	}
	if cfg.FlowTTL <= 0 {
		cfg.FlowTTL = defaultFlowTTL
	}

	return &Service{
		submitter: submitter,
		history:   history,
		limiter:   NewSubmitLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		cfg:       cfg,
		flows:     make(map[string]*activeFlow),
	}
}

// Snapshot is a read-only view of a flow for rendering.
type Snapshot struct {
	FlowID     string    `json:"flow_id"`
	State      FlowState `json:"state"`
	Generation uint64    `json:"generation"`
	FileName   string    `json:"file_name,omitempty"`
	FileSize   int64     `json:"file_size,omitempty"`
	// HeaderValid is nil until a header verdict exists.
	HeaderValid *bool        `json:"header_valid"`
	Headers     []string     `json:"headers,omitempty"`
	Missing     []Field      `json:"missing_headers,omitempty"`
	Duplicates  []Field      `json:"duplicate_headers,omitempty"`
	ParseError  string       `json:"parse_error,omitempty"`
	ErrorCode   string       `json:"error_code,omitempty"`
	Preview     []PreviewRow `json:"preview"`
	// PreviewIssues are advisory; they never block a submission.
	PreviewIssues []RowIssue    `json:"preview_issues,omitempty"`
	DataRows      int           `json:"data_rows"`
	Pending       bool          `json:"pending"`
	CanSubmit     bool          `json:"can_submit"`
	Result        *ImportResult `json:"result,omitempty"`
	Notice        string        `json:"notice,omitempty"`
}

func snapshotOf(id string, f Flow) Snapshot {
	s := Snapshot{
		FlowID:     id,
		State:      f.State,
		Generation: f.Generation,
		Preview:    []PreviewRow{},
		Pending:    f.Pending,
		CanSubmit:  f.CanSubmit(),
		Result:     f.Result,
		Notice:     f.Notice,
	}
	if f.File != nil {
		s.FileName = f.File.Name
		s.FileSize = f.File.Size()
	}
	if in := f.Inspection; in != nil {
		if problem := in.Problem(); problem != nil {
			msg := MapError(problem)
			s.ParseError = msg.Message
			s.ErrorCode = msg.Code
		}
		if in.Err == nil {
			valid := in.Header.Valid()
			s.HeaderValid = &valid
			s.Headers = in.Header.Headers
			s.Missing = in.Header.Missing
			s.Duplicates = in.Header.Duplicates
			s.Preview = in.Preview
			s.DataRows = in.DataRows
			if valid {
				s.PreviewIssues = CheckPreview(in.Preview)
			}
		}
	}
	return s
}

// NewFlow starts an empty flow owned by owner and returns its ID.
func (s *Service) NewFlow(owner string) string {
	af := &activeFlow{
		ID:       uuid.NewString(),
		Owner:    owner,
		flow:     Flow{State: StateIdle},
		lastSeen: time.Now(),
	}

	s.mu.Lock()
	s.flows[af.ID] = af
	s.mu.Unlock()

	return af.ID
}

func (s *Service) lookup(id, owner string) (*activeFlow, error) {
	s.mu.RLock()
	af, ok := s.flows[id]
	s.mu.RUnlock()

	if !ok || af.Owner != owner {
		return nil, fmt.Errorf("flow %s: %w", id, ErrFlowNotFound)
	}
	return af, nil
}

// dispatch runs one event through the reducer under the flow lock.
func (af *activeFlow) dispatch(ev Event) (Snapshot, *SubmitCommand) {
	af.mu.Lock()
	defer af.mu.Unlock()

	next, cmd := Reduce(af.flow, ev)
	af.flow = next
	af.lastSeen = time.Now()
	return snapshotOf(af.ID, next), cmd
}

// complete applies a submission's response and drops its cancel handle under
// one lock. Pending is only cleared here, so no later Submit can have
// installed a handle of its own yet.
func (af *activeFlow) complete(ev ResponseReceived) Snapshot {
	af.mu.Lock()
	defer af.mu.Unlock()

	next, _ := Reduce(af.flow, ev)
	af.flow = next
	af.cancel = nil
	af.lastSeen = time.Now()
	return snapshotOf(af.ID, next)
}

// SelectFile inspects file and makes it the flow's current selection.
func (s *Service) SelectFile(ctx context.Context, id, owner string, file RawFile) (Snapshot, error) {
	af, err := s.lookup(id, owner)
	if err != nil {
		return Snapshot{}, err
	}

	snap, _ := af.dispatch(FileSelected{File: file})

	logging.WithFields(ctx, "flow_id", id, "generation", snap.Generation).Info("import file selected",
		"file", file.Name,
		"bytes", file.Size(),
		"state", snap.State,
		"data_rows", snap.DataRows,
	)
	return snap, nil
}

// ClearFile drops the current selection.
func (s *Service) ClearFile(ctx context.Context, id, owner string) (Snapshot, error) {
	af, err := s.lookup(id, owner)
	if err != nil {
		return Snapshot{}, err
	}
	snap, _ := af.dispatch(FileCleared{})
	return snap, nil
}

// Snapshot returns the current view of a flow.
func (s *Service) Snapshot(id, owner string) (Snapshot, error) {
	af, err := s.lookup(id, owner)
	if err != nil {
		return Snapshot{}, err
	}

	af.mu.Lock()
	defer af.mu.Unlock()
	af.lastSeen = time.Now()
	return snapshotOf(af.ID, af.flow), nil
}

// Submit requests that the selected file be sent with credential.
//
// When the flow accepts, the relay runs in the background and the returned
// snapshot is pending. When it refuses, the error wraps ErrSubmitRefused and
// the snapshot's Notice says why.
func (s *Service) Submit(ctx context.Context, id, owner, credential string) (Snapshot, error) {
	af, err := s.lookup(id, owner)
	if err != nil {
		return Snapshot{}, err
	}

	af.mu.Lock()
	next, cmd := Reduce(af.flow, SubmitRequested{})
	af.flow = next
	af.lastSeen = time.Now()
	snap := snapshotOf(af.ID, next)
	if cmd == nil {
		af.mu.Unlock()
		return snap, fmt.Errorf("%w: %s", ErrSubmitRefused, next.Notice)
	}

	// The relay outlives the HTTP request that started it but keeps its
	// values (request ID, client info) for logging and history.
	runCtx, cancel := context.WithCancelCause(context.WithoutCancel(ctx))
	af.cancel = cancel
	af.done = make(chan struct{})
	done := af.done
	af.mu.Unlock()

	s.inflight.Add(1)
	go func() {
		defer s.inflight.Done()
		defer close(done)
		defer cancel(nil)
		s.runSubmission(runCtx, af, credential, *cmd)
	}()

	return snap, nil
}

// runSubmission relays one file and feeds the outcome back into the flow.
func (s *Service) runSubmission(ctx context.Context, af *activeFlow, credential string, cmd SubmitCommand) {
	logger := logging.WithFields(ctx,
		"flow_id", af.ID,
		"generation", cmd.Generation,
		"file", cmd.File.Name,
	)
	start := time.Now()

	report, err := s.relay(ctx, credential, cmd.File)
	if err != nil && context.Cause(ctx) == ErrUploadCancelled {
		err = ErrUploadCancelled
	}
	result := importResult(report, err)

	switch {
	case errors.Is(err, ErrMalformedResponse):
		logger.Error("ingestion response failed validation", "error", err)
	case err != nil:
		logger.Warn("import submission failed", "error", err, "code", result.Code)
	default:
		logger.Info("import submission completed",
			"success", result.Success,
			"success_count", result.Summary.SuccessCount,
			"failed_count", result.Summary.FailedCount,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}

	snap := af.complete(ResponseReceived{Generation: cmd.Generation, Result: result})
	if snap.Generation != cmd.Generation {
		logger.Info("discarded stale import response", "current_generation", snap.Generation)
	}

	s.recordAttempt(ctx, logger, af.ID, cmd.File, start, result)
}

func (s *Service) relay(ctx context.Context, credential string, file RawFile) (*IngestionReport, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.cfg.SubmitTimeout)
	defer cancel()

	return s.submitter.ImportVouchers(ctx, credential, file)
}

// importResult turns a relay outcome into what the caller renders.
func importResult(report *IngestionReport, err error) ImportResult {
	if err != nil {
		msg := MapError(err)
		return ImportResult{Success: false, Message: msg.Message, Code: msg.Code}
	}
	summary := report.Summary
	if summary.FailedRows == nil {
		summary.FailedRows = []FailedRow{}
	}
	return ImportResult{
		Success: report.Success,
		Message: report.Message,
		Summary: &summary,
	}
}

func (s *Service) recordAttempt(ctx context.Context, logger *slog.Logger, flowID string, file RawFile, start time.Time, result ImportResult) {
	if s.history == nil {
		return
	}

	client := ClientFromContext(ctx)
	attempt := ImportAttempt{
		ID:          uuid.NewString(),
		FlowID:      flowID,
		FileName:    file.Name,
		FileSize:    file.Size(),
		SubmittedAt: start.UTC(),
		Duration:    time.Since(start),
		Success:     result.Success,
		Message:     result.Message,
		IPAddress:   client.IPAddress,
		UserAgent:   client.UserAgent,
	}
	if result.Summary != nil {
		attempt.SuccessCount = result.Summary.SuccessCount
		attempt.FailedCount = result.Summary.FailedCount
		attempt.FailedRows = result.Summary.FailedRows
	}

	// A cancelled relay context must not stop the history write.
	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if err := s.history.Record(writeCtx, attempt); err != nil {
		logger.Error("failed to record import attempt", "error", err)
	}
}

// Cancel aborts the flow's in-flight submission, if any.
func (s *Service) Cancel(id, owner string) error {
	af, err := s.lookup(id, owner)
	if err != nil {
		return err
	}

	af.mu.Lock()
	cancel := af.cancel
	af.mu.Unlock()

	if cancel == nil {
		return fmt.Errorf("flow %s has no submission in progress", id)
	}
	cancel(ErrUploadCancelled)
	return nil
}

// Wait blocks until the flow has no submission in flight, then returns its
// snapshot.
func (s *Service) Wait(ctx context.Context, id, owner string) (Snapshot, error) {
	af, err := s.lookup(id, owner)
	if err != nil {
		return Snapshot{}, err
	}

	af.mu.Lock()
	done := af.done
	af.mu.Unlock()

	if done != nil {
		select {
		case <-done:
		case <-ctx.Done():
			return Snapshot{}, ctx.Err()
		}
	}
	return s.Snapshot(id, owner)
}

// SubmitLimiterStatus returns the relay limiter state.
func (s *Service) SubmitLimiterStatus() SubmitLimiterStatus {
	return s.limiter.Status()
}

// WaitForSubmissions blocks until every background relay has finished.
// Used on shutdown.
func (s *Service) WaitForSubmissions(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RecentImports lists the latest import attempts, newest first.
func (s *Service) RecentImports(ctx context.Context, limit int) ([]ImportAttempt, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

// CleanupIdleFlows forgets flows untouched for longer than the flow TTL.
// Flows with a submission in flight are kept. Returns the number removed.
func (s *Service) CleanupIdleFlows(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, af := range s.flows {
		af.mu.Lock()
		stale := !af.flow.Pending && now.Sub(af.lastSeen) > s.cfg.FlowTTL
		af.mu.Unlock()

		if stale {
			delete(s.flows, id)
			removed++
		}
	}
	return removed
}

// FlowCount returns the number of tracked flows.
func (s *Service) FlowCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.flows)
}
