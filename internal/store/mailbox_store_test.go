package store_test

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"

	"relay/internal/domain"
	"relay/internal/store"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

var dbSeq atomic.Int64

func setupStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := fmt.Sprintf("file:storetest%d?mode=memory&cache=shared", dbSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	st := store.New(db)
	if err := st.AutoMigrate(context.Background()); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return st
}

func addDevice(t *testing.T, st *store.Store) uuid.UUID {
	t.Helper()

	setID := uuid.New()
	if err := st.Registry().CreateDeviceSet(context.Background(), domain.DeviceSet{
		ID:     setID,
		UserID: uuid.New(),
		Role:   domain.RoleProvider,
	}); err != nil {
		t.Fatalf("create device set: %v", err)
	}
	deviceID := uuid.New()
	if err := st.Registry().AddDevice(context.Background(), domain.Device{
		ID:                deviceID,
		DeviceSetID:       setID,
		IdentityPublicKey: "key",
		SignedPreKey:      "prekey",
	}); err != nil {
		t.Fatalf("add device: %v", err)
	}
	return deviceID
}

func TestAppendUnknownDevice(t *testing.T) {
	st := setupStore(t)

	err := st.Mailboxes().AppendMessage(context.Background(), &domain.Message{
		ID:                uuid.New(),
		DeviceID:          uuid.New(),
		Ciphertext:        []byte("x"),
		SenderID:          uuid.New(),
		SenderDeviceID:    uuid.New(),
		SenderIdentityKey: "k",
	})
	if !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	err = st.Mailboxes().AppendContactRequest(context.Background(), &domain.ContactRequest{
		ID:                 uuid.New(),
		DeviceID:           uuid.New(),
		SenderIDCiphertext: []byte("a"),
		MessageCiphertext:  []byte("b"),
	})
	if !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestDrainUnknownDevice(t *testing.T) {
	st := setupStore(t)

	if _, err := st.Mailboxes().DrainMessages(context.Background(), uuid.New()); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
	if _, err := st.Mailboxes().DrainContactRequests(context.Background(), uuid.New()); !errors.Is(err, store.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}
}

func TestDrainReturnsInsertionOrderAndClears(t *testing.T) {
	st := setupStore(t)
	deviceID := addDevice(t, st)
	other := addDevice(t, st)

	for i := 0; i < 4; i++ {
		if err := st.Mailboxes().AppendMessage(context.Background(), &domain.Message{
			ID:                uuid.New(),
			DeviceID:          deviceID,
			Ciphertext:        []byte{byte(i)},
			SenderID:          uuid.New(),
			SenderDeviceID:    uuid.New(),
			SenderIdentityKey: "k",
		}); err != nil {
			t.Fatalf("append %d: %v", i, err)
		}
	}

	msgs, err := st.Mailboxes().DrainMessages(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	for i, m := range msgs {
		if m.Ciphertext[0] != byte(i) {
			t.Fatalf("entry %d out of insertion order", i)
		}
	}

	again, err := st.Mailboxes().DrainMessages(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("second drain: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected cleared inbox, got %d entries", len(again))
	}

	// The other device's queue is untouched.
	otherMsgs, err := st.Mailboxes().DrainMessages(context.Background(), other)
	if err != nil {
		t.Fatalf("other drain: %v", err)
	}
	if len(otherMsgs) != 0 {
		t.Fatalf("cross-device interference: %d entries", len(otherMsgs))
	}
}

func TestMailboxKindsAreSeparate(t *testing.T) {
	st := setupStore(t)
	deviceID := addDevice(t, st)

	if err := st.Mailboxes().AppendContactRequest(context.Background(), &domain.ContactRequest{
		ID:                 uuid.New(),
		DeviceID:           deviceID,
		SenderIDCiphertext: []byte("sender"),
		MessageCiphertext:  []byte("msg"),
	}); err != nil {
		t.Fatalf("append contact: %v", err)
	}

	msgs, err := st.Mailboxes().DrainMessages(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("drain inbox: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("contact request leaked into the inbox")
	}

	reqs, err := st.Mailboxes().DrainContactRequests(context.Background(), deviceID)
	if err != nil {
		t.Fatalf("drain contact inbox: %v", err)
	}
	if len(reqs) != 1 {
		t.Fatalf("expected 1 contact request, got %d", len(reqs))
	}
}
