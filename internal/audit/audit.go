package audit

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cartaocomp/cartaocomp/internal/models"
	log "github.com/sirupsen/logrus"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Entry describes one state-changing call.
type Entry struct {
	Actor    string `json:"actor"`
	Action   string `json:"action"`
	Entity   string `json:"entity"`
	EntityID uint64 `json:"entity_id"`
	Before   any    `json:"before,omitempty"`
	After    any    `json:"after,omitempty"`
}

// Recorder persists audit rows and optionally mirrors them to kafka.
//
// The database row is the source of truth and is written inside the same
// transaction as the mutation it describes; the kafka mirror is best
// effort and happens only after commit.
type Recorder struct {
	publisher *KafkaPublisher
}

// NewRecorder constructs a Recorder. publisher may be nil.
func NewRecorder(publisher *KafkaPublisher) *Recorder {
	return &Recorder{publisher: publisher}
}

// Record writes one audit row inside tx.
func (r *Recorder) Record(tx *gorm.DB, entry Entry) error {
	if tx == nil {
		return errors.New("audit: nil tx")
	}

	before, errBefore := marshalSnapshot(entry.Before)
	if errBefore != nil {
		return fmt.Errorf("audit: marshal before: %w", errBefore)
	}
	after, errAfter := marshalSnapshot(entry.After)
	if errAfter != nil {
		return fmt.Errorf("audit: marshal after: %w", errAfter)
	}

	row := models.AuditLog{
		Actor:     entry.Actor,
		Action:    entry.Action,
		Entity:    entry.Entity,
		EntityID:  entry.EntityID,
		Before:    before,
		After:     after,
		CreatedAt: time.Now().UTC(),
	}
	return tx.Create(&row).Error
}

// Mirror publishes the entry to kafka after a successful commit.
// Failures are logged and never propagated.
func (r *Recorder) Mirror(ctx context.Context, entry Entry) {
	if r == nil || r.publisher == nil {
		return
	}
	if errPublish := r.publisher.Publish(ctx, entry); errPublish != nil {
		log.WithError(errPublish).WithField("action", entry.Action).Warn("audit: kafka mirror failed")
	}
}

// marshalSnapshot serializes a snapshot value to a JSON column.
func marshalSnapshot(v any) (datatypes.JSON, error) {
	if v == nil {
		return nil, nil
	}
	data, errMarshal := json.Marshal(v)
	if errMarshal != nil {
		return nil, errMarshal
	}
	return datatypes.JSON(data), nil
}
