// Package scheduler implements the Smart Scheduler: a per-employer
// tumbling-window batcher that buffers freshly ingested requests and, on
// window expiry, republishes them in priority order.
package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/pmundhra/plum-ems/internal/bus"
	"github.com/pmundhra/plum-ems/internal/domain"
	"github.com/pmundhra/plum-ems/internal/errs"
	"github.com/pmundhra/plum-ems/internal/kv"
	"github.com/pmundhra/plum-ems/internal/logging"
	"github.com/pmundhra/plum-ems/internal/metrics"
)

const activeEmployersKey = "scheduler:active_employers"

// Scheduler buffers ingested requests per employer and sweeps expired
// windows into priority-ordered, republished batches.
type Scheduler struct {
	kv        *kv.Store
	dedup     *DedupGuard
	publisher bus.Publisher
	window    time.Duration
	log       *logging.Logger
}

// New builds a Scheduler with the given tumbling-window duration (spec
// default 300s).
func New(store *kv.Store, dedup *DedupGuard, publisher bus.Publisher, window time.Duration, log *logging.Logger) *Scheduler {
	return &Scheduler{kv: store, dedup: dedup, publisher: publisher, window: window, log: log}
}

// Name identifies this handler in the bus registry.
func (s *Scheduler) Name() string { return "scheduler.ingested" }

// Handle implements bus.Handler for endorsement.ingested.
func (s *Scheduler) Handle(ctx context.Context, msg bus.Message, interim bus.InterimOutput) (bus.InterimOutput, error) {
	var event domain.PrioritizedEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return interim, errs.SchedulerDecodeFailed(err)
	}
	return interim, s.Ingest(ctx, event)
}

// Ingest implements the Scheduler's ingestion protocol from spec.md §4.1:
// append to the employer's queue, mark the employer active, and open a
// tumbling window if one is not already open.
func (s *Scheduler) Ingest(ctx context.Context, event domain.PrioritizedEvent) error {
	if s.dedup != nil {
		duplicate, err := s.dedup.Seen(ctx, event.EmployerID, event.EffectiveDate, event.Payload)
		if err != nil {
			return err
		}
		if duplicate {
			s.log.WithComponent("scheduler").WithField("endorsement_id", event.EndorsementID).Warn("duplicate ingestion suppressed by dedup guard")
			return nil
		}
	}

	serialized, err := json.Marshal(event)
	if err != nil {
		return errs.SchedulerDecodeFailed(err)
	}

	if err := s.kv.RPush(ctx, queueKey(event.EmployerID), string(serialized)); err != nil {
		return err
	}
	if err := s.kv.SAdd(ctx, activeEmployersKey, event.EmployerID); err != nil {
		return err
	}

	expiry := time.Now().Add(s.window).Unix()
	if _, err := s.kv.SetIfAbsent(ctx, windowKey(event.EmployerID), fmt.Sprintf("%d", expiry), s.window); err != nil {
		return err
	}
	return nil
}

func queueKey(employerID string) string {
	return fmt.Sprintf("scheduler:queue:%s", employerID)
}

func windowKey(employerID string) string {
	return fmt.Sprintf("scheduler:window:%s", employerID)
}

func processingKey(employerID string) string {
	return fmt.Sprintf("scheduler:processing:%s:%d", employerID, time.Now().UnixNano())
}

// Sweep visits every active employer and, for each whose window has
// expired (key absent, since SetIfAbsent's own TTL already expires it),
// atomically hands off the queue and republishes its contents in priority
// order. Intended to be invoked periodically by a cron-driven caller.
func (s *Scheduler) Sweep(ctx context.Context) {
	employers, err := s.kv.SMembers(ctx, activeEmployersKey)
	if err != nil {
		s.log.WithComponent("scheduler").WithError(err).Error("sweep: list active employers failed")
		return
	}

	for _, employerID := range employers {
		if err := s.sweepOne(ctx, employerID); err != nil {
			s.log.WithComponent("scheduler").WithError(err).WithField("employer_id", employerID).Error("sweep failed for employer")
		}
	}
}

func (s *Scheduler) sweepOne(ctx context.Context, employerID string) error {
	windowOpen, err := s.kv.Exists(ctx, windowKey(employerID))
	if err != nil {
		return err
	}
	if windowOpen {
		return nil
	}

	processing := processingKey(employerID)
	if err := s.kv.Rename(ctx, queueKey(employerID), processing); err != nil {
		if err == kv.ErrQueueMissing {
			// Nothing queued (or a concurrent sweep already drained it);
			// the employer is stale, clean it up silently.
			_ = s.kv.SRem(ctx, activeEmployersKey, employerID)
			return nil
		}
		return err
	}

	_ = s.kv.Delete(ctx, windowKey(employerID))
	_ = s.kv.SRem(ctx, activeEmployersKey, employerID)

	items, err := s.kv.LPopAll(ctx, processing)
	if err != nil {
		return err
	}

	items2 := make([]queuedItem, 0, len(items))
	for i, raw := range items {
		var event domain.PrioritizedEvent
		if err := json.Unmarshal([]byte(raw), &event); err != nil {
			s.log.WithComponent("scheduler").WithError(err).WithField("employer_id", employerID).Error("dropping undecodable queue item")
			continue
		}
		items2 = append(items2, queuedItem{Event: event, ArrivalIndex: i})
	}

	sortByPriorityThenArrival(items2)

	for _, item := range items2 {
		event := item.Event
		if err := s.publisher.Publish(ctx, domain.TopicEndorsementPrioritized, map[string]string{
			bus.HeaderTraceID:    event.TraceID,
			bus.HeaderEmployerID: event.EmployerID,
			bus.HeaderSource:     "scheduler",
		}, event); err != nil {
			s.log.WithComponent("scheduler").WithError(err).WithField("endorsement_id", event.EndorsementID).Error("publish prioritized event failed")
		}
	}

	metrics.SchedulerBatchesProcessedTotal.WithLabelValues(employerID).Inc()
	return nil
}

// queuedItem pairs a decoded event with its original queue position, so
// the priority sort's tie-break can preserve FIFO arrival order.
type queuedItem struct {
	Event        domain.PrioritizedEvent
	ArrivalIndex int
}

func sortByPriorityThenArrival(items []queuedItem) {
	sort.SliceStable(items, func(i, j int) bool {
		pi, pj := items[i].Event.Type.Priority(), items[j].Event.Type.Priority()
		if pi != pj {
			return pi < pj
		}
		return items[i].ArrivalIndex < items[j].ArrivalIndex
	})
}
