package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"

	"github.com/NandiniGupta213/crm-billing/internal/billing"
	"github.com/NandiniGupta213/crm-billing/internal/obs"
)

// TaskTypeOverdueScan identifies the periodic overdue derivation task.
const TaskTypeOverdueScan = "billing:overdue_scan"

// NewOverdueScanTask builds the scan task. The scan carries no payload.
func NewOverdueScanTask() *asynq.Task {
	return asynq.NewTask(TaskTypeOverdueScan, nil)
}

// OverdueScanner walks the invoice registry and derives which sent invoices
// have slipped past their due date. The scan never mutates stored status:
// overdue is always derived at read time, the scan only refreshes the gauge
// and surfaces newly overdue invoices in the logs.
type OverdueScanner struct {
	Store  *billing.Store
	Logger zerolog.Logger
	Now    func() time.Time

	// mu guards seen; backlogged scan tasks can run concurrently on the
	// asynq server.
	mu   sync.Mutex
	seen map[string]bool
}

// Result summarises a single scan pass.
type Result struct {
	Scanned int
	Overdue int
	New     []string
}

// Scan walks the registry once and returns the pass summary.
func (s *OverdueScanner) Scan(now time.Time) Result {
	res := Result{}
	current := make(map[string]bool)
	invoices := s.Store.List()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, inv := range invoices {
		res.Scanned++
		if inv.Effective(now) != billing.StatusOverdue {
			continue
		}
		res.Overdue++
		current[inv.Number] = true
		if !s.seen[inv.Number] {
			res.New = append(res.New, inv.Number)
		}
	}
	s.seen = current
	return res
}

// HandleScan implements the asynq handler for the overdue scan task.
func (s *OverdueScanner) HandleScan(_ context.Context, _ *asynq.Task) error {
	start := time.Now()
	now := start
	if s.Now != nil {
		now = s.Now()
	}
	res := s.Scan(now)

	obs.InvoicesOverdue.Set(float64(res.Overdue))
	obs.OverdueScanDuration.Observe(obs.DurationMillis(time.Since(start)))

	evt := s.Logger.Info().
		Int("scanned", res.Scanned).
		Int("overdue", res.Overdue)
	if len(res.New) > 0 {
		evt = evt.Strs("newly_overdue", res.New)
	}
	evt.Msg("overdue_scan")
	return nil
}
