package businessflow

import (
	"context"
	"fmt"

	"github.com/amirphl/tv-slot-pool/models"
	"github.com/amirphl/tv-slot-pool/repository"
)

type actorContextKey struct{}

// WithActor tags ctx with the identity performing the operation; it is copied into history metadata
func WithActor(ctx context.Context, actor string) context.Context {
	if actor == "" {
		return ctx
	}
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext returns the actor set by WithActor
func ActorFromContext(ctx context.Context) (string, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(string)
	return actor, ok && actor != ""
}

// SlotAuditRecorder appends history entries and answers the questions asked of them
type SlotAuditRecorder struct {
	history repository.SlotHistoryRepository
}

func NewSlotAuditRecorder(history repository.SlotHistoryRepository) *SlotAuditRecorder {
	return &SlotAuditRecorder{history: history}
}

// Record appends exactly one entry. Call it with the same ctx as the mutation
// so both commit or roll back together.
func (r *SlotAuditRecorder) Record(ctx context.Context, slotID uint, action models.SlotHistoryAction, metadata models.HistoryMetadata) error {
	snapshot := make(models.HistoryMetadata, len(metadata)+1)
	for k, v := range metadata {
		snapshot[k] = v
	}
	if actor, ok := ActorFromContext(ctx); ok {
		if _, set := snapshot["actor"]; !set {
			snapshot["actor"] = actor
		}
	}

	raw, err := snapshot.Marshal()
	if err != nil {
		return fmt.Errorf("failed to encode history metadata: %w", err)
	}

	entry := &models.SlotHistory{
		SlotID:   slotID,
		Action:   action,
		Metadata: raw,
	}
	return r.history.Save(ctx, entry)
}

// History returns the entries of a slot, newest first
func (r *SlotAuditRecorder) History(ctx context.Context, slotID uint) ([]*models.SlotHistory, error) {
	return r.history.ListBySlot(ctx, slotID)
}

// HistoryBySlots returns entries of several slots grouped by slot id, newest first
func (r *SlotAuditRecorder) HistoryBySlots(ctx context.Context, slotIDs []uint) (map[uint][]*models.SlotHistory, error) {
	rows, err := r.history.ListBySlots(ctx, slotIDs)
	if err != nil {
		return nil, err
	}
	grouped := make(map[uint][]*models.SlotHistory, len(slotIDs))
	for _, h := range rows {
		grouped[h.SlotID] = append(grouped[h.SlotID], h)
	}
	return grouped, nil
}

// HasBeenAssigned reports whether the slot was ever claimed
func (r *SlotAuditRecorder) HasBeenAssigned(ctx context.Context, slotID uint) (bool, error) {
	return r.history.ExistsAction(ctx, slotID, models.SlotHistoryActionAssigned)
}
