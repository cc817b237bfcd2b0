package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cn-dashboard/internal/models"
	"cn-dashboard/internal/observability"
)

// Fetcher loads the daily report records of an inclusive date range.
// Implementations must be safe to call again for the same range.
type Fetcher interface {
	FetchReport(ctx context.Context, start, end time.Time) ([]models.DailyReportRecord, error)
}

// ReportState is a snapshot of the status machine. Records are shared and
// must not be modified.
type ReportState struct {
	Status      models.ReportStatus        `json:"status"`
	Range       *models.DateRange          `json:"range,omitempty"`
	Records     []models.DailyReportRecord `json:"-"`
	RecordCount int                        `json:"record_count"`
	Error       string                     `json:"error,omitempty"`
	Sequence    uint64                     `json:"sequence"`
	UpdatedAt   time.Time                  `json:"updated_at"`
}

// StatusMachine tracks the fetch lifecycle for the active date range.
// Every request gets a sequence number; a response that arrives after a
// newer request was issued is dropped.
type StatusMachine struct {
	fetcher Fetcher
	logger  *slog.Logger
	timeout time.Duration

	ctx    context.Context
	stop   context.CancelFunc
	mu     sync.RWMutex
	state  ReportState
	seq    uint64
	cancel context.CancelFunc

	subs    map[uint64]chan ReportState
	nextSub uint64
}

func NewStatusMachine(fetcher Fetcher, logger *slog.Logger, timeout time.Duration) *StatusMachine {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, stop := context.WithCancel(context.Background())
	return &StatusMachine{
		fetcher: fetcher,
		logger:  logger,
		timeout: timeout,
		ctx:     ctx,
		stop:    stop,
		state:   ReportState{Status: models.StatusInitial, UpdatedAt: time.Now()},
		subs:    make(map[uint64]chan ReportState),
	}
}

// Request moves the machine to loading and fetches rng in the background.
// The previous in-flight fetch is cancelled. The returned channel closes
// once this request's outcome has been applied or discarded.
func (m *StatusMachine) Request(rng models.DateRange) <-chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestLocked(rng)
}

// Retry replays the last attempted range after a failed fetch. The status
// check and the new request happen under one lock, so concurrent retries
// start a single fetch.
func (m *StatusMachine) Retry() (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Status != models.StatusError || m.state.Range == nil {
		return nil, ErrNothingToRetry
	}
	return m.requestLocked(*m.state.Range), nil
}

// Reload fetches the current range again whatever its status.
func (m *StatusMachine) Reload() (<-chan struct{}, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state.Range == nil {
		return nil, ErrNothingToRefresh
	}
	return m.requestLocked(*m.state.Range), nil
}

// requestLocked must be called with mu held.
func (m *StatusMachine) requestLocked(rng models.DateRange) <-chan struct{} {
	if m.cancel != nil {
		m.cancel()
	}
	m.seq++
	seq := m.seq

	var ctx context.Context
	var cancel context.CancelFunc
	if m.timeout > 0 {
		ctx, cancel = context.WithTimeout(m.ctx, m.timeout)
	} else {
		ctx, cancel = context.WithCancel(m.ctx)
	}
	m.cancel = cancel

	m.state = ReportState{
		Status:    models.StatusLoading,
		Range:     &rng,
		Sequence:  seq,
		UpdatedAt: time.Now(),
	}
	m.publish()

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer cancel()

		records, err := m.fetch(ctx, rng)
		m.apply(seq, records, err)
	}()
	return done
}

func (m *StatusMachine) State() ReportState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Subscribe returns a channel carrying the latest state after each
// transition. Slow readers only ever see the newest state.
func (m *StatusMachine) Subscribe() (<-chan ReportState, func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	ch := make(chan ReportState, 1)
	m.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			delete(m.subs, id)
			close(ch)
		})
	}
}

// Close cancels any in-flight fetch. Later requests fail immediately.
func (m *StatusMachine) Close() {
	m.stop()
}

func (m *StatusMachine) fetch(ctx context.Context, rng models.DateRange) (records []models.DailyReportRecord, err error) {
	ctx, span := observability.StartSpan(ctx, "report.fetch")
	span.SetTag("range", rng.String())

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("report fetch panicked: %v", r)
		}
		span.Finish()
		if err != nil {
			span.SetError(err)
			m.logger.Warn("report fetch failed", "span", span)
			return
		}
		m.logger.Info("report fetch finished", "span", span, "records", len(records))
	}()

	return m.fetcher.FetchReport(ctx, rng.Start, rng.End)
}

func (m *StatusMachine) apply(seq uint64, records []models.DailyReportRecord, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if seq != m.seq {
		m.logger.Debug("discarding stale report response", "sequence", seq, "latest", m.seq)
		return
	}
	m.cancel = nil

	next := ReportState{
		Range:     m.state.Range,
		Sequence:  seq,
		UpdatedAt: time.Now(),
	}
	switch {
	case err != nil:
		next.Status = models.StatusError
		next.Error = err.Error()
	case len(records) == 0:
		next.Status = models.StatusEmpty
	default:
		next.Status = models.StatusSuccess
		next.Records = records
		next.RecordCount = len(records)
	}
	m.state = next
	m.publish()
}

// publish must be called with mu held.
func (m *StatusMachine) publish() {
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- m.state
	}
}
