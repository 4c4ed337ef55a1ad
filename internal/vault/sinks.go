package vault

import (
	"context"
	"log"

	"custody-vault/internal/domain"
	"custody-vault/internal/observability"
	"custody-vault/internal/storage"
)

// Sink receives committed custody events. Emission is best-effort:
// custody semantics never depend on a sink succeeding.
type Sink interface {
	Emit(ctx context.Context, e *domain.Event)
}

// Sinks fans one event out to several sinks in order.
type Sinks []Sink

// Emit implements Sink.
func (s Sinks) Emit(ctx context.Context, e *domain.Event) {
	for _, sink := range s {
		sink.Emit(ctx, e)
	}
}

// JournalSink persists events to an EventStore. Write failures are
// logged and counted, never propagated.
type JournalSink struct {
	Store  storage.EventStore
	Logger *log.Logger
}

// Emit implements Sink.
func (s *JournalSink) Emit(ctx context.Context, e *domain.Event) {
	if err := s.Store.Insert(ctx, e); err != nil {
		if s.Logger != nil {
			s.Logger.Printf("journal insert %s: %v", e.EventID, err)
		}
		observability.RecordJournalError()
	}
}

// AnalyticsSink mirrors outbound transfers into the analytics transfer
// log. Non-transfer events are ignored.
type AnalyticsSink struct {
	Store  storage.TransferLogStore
	Logger *log.Logger
}

// Emit implements Sink.
func (s *AnalyticsSink) Emit(ctx context.Context, e *domain.Event) {
	if e.Kind != domain.EventWithdrawal && e.Kind != domain.EventTokenWithdrawal {
		return
	}

	point := &domain.TransferLogPoint{
		VaultID:     e.VaultID,
		Asset:       domain.AssetNative,
		TimestampMs: e.TimestampMs,
	}
	if e.Token != nil {
		point.Asset = e.Token.String()
	}
	if e.Recipient != nil {
		point.Recipient = e.Recipient.String()
	}
	if e.Amount != nil {
		point.Amount = e.Amount.InexactFloat64()
	}

	if err := s.Store.InsertBulk(ctx, []*domain.TransferLogPoint{point}); err != nil {
		if s.Logger != nil {
			s.Logger.Printf("transfer log insert: %v", err)
		}
		observability.RecordJournalError()
	}
}
