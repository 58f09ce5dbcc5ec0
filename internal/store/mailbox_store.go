package store

import (
	"context"

	"relay/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Kind selects which of the two per-device queues an operation addresses.
// The queues are structurally identical but have different writers and
// different consent semantics, so they live in separate tables.
type Kind string

const (
	KindInbox   Kind = "inbox"
	KindContact Kind = "contact"
)

// MailboxStore is the append/drain surface over both queue kinds. Append and
// Drain touch only the named device's rows; callers needing multi-device
// atomicity (deposit fan-out) wrap calls in Store.WithTx.
type MailboxStore struct{ store *Store }

func (s *Store) Mailboxes() *MailboxStore { return &MailboxStore{store: s} }

type entry interface {
	SeqNo() int64
}

func (m *MailboxStore) AppendMessage(ctx context.Context, msg *domain.Message) error {
	if err := m.requireDevice(ctx, msg.DeviceID); err != nil {
		return err
	}
	return m.store.DB.WithContext(ctx).Create(msg).Error
}

func (m *MailboxStore) AppendContactRequest(ctx context.Context, req *domain.ContactRequest) error {
	if err := m.requireDevice(ctx, req.DeviceID); err != nil {
		return err
	}
	return m.store.DB.WithContext(ctx).Create(req).Error
}

// DrainMessages atomically returns and removes every queued message for the
// device, in insertion order. Two concurrent drains on one device partition
// the entries: the row lock serializes them and each entry is deleted exactly
// once.
func (m *MailboxStore) DrainMessages(ctx context.Context, deviceID uuid.UUID) ([]domain.Message, error) {
	return drainEntries[domain.Message](ctx, m, deviceID)
}

func (m *MailboxStore) DrainContactRequests(ctx context.Context, deviceID uuid.UUID) ([]domain.ContactRequest, error) {
	return drainEntries[domain.ContactRequest](ctx, m, deviceID)
}

func drainEntries[E entry](ctx context.Context, m *MailboxStore, deviceID uuid.UUID) ([]E, error) {
	var drained []E
	err := m.store.WithTx(ctx, func(tx *Store) error {
		if err := (&MailboxStore{store: tx}).requireDevice(ctx, deviceID); err != nil {
			return err
		}
		if err := tx.DB.WithContext(ctx).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("device_id = ?", deviceID).
			Order("seq ASC").
			Find(&drained).Error; err != nil {
			return err
		}
		if len(drained) == 0 {
			return nil
		}
		// Delete by seq, not by device: an insert committing after the locked
		// read must survive for the next drain.
		seqs := make([]int64, 0, len(drained))
		for _, e := range drained {
			seqs = append(seqs, e.SeqNo())
		}
		var model E
		return tx.DB.WithContext(ctx).Where("seq IN ?", seqs).Delete(&model).Error
	})
	if err != nil {
		return nil, err
	}
	return drained, nil
}

func (m *MailboxStore) requireDevice(ctx context.Context, deviceID uuid.UUID) error {
	var device domain.Device
	if err := m.store.DB.WithContext(ctx).Select("id").First(&device, "id = ?", deviceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return ErrRecordNotFound
		}
		return err
	}
	return nil
}
