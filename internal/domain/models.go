package domain

import (
	"time"

	"github.com/google/uuid"
)

type UserRole string

const (
	RolePatient  UserRole = "patient"
	RoleProvider UserRole = "provider"
)

func (r UserRole) Valid() bool {
	return r == RolePatient || r == RoleProvider
}

// DeviceSet links a user identity to its devices. Exactly one per user; the
// relay never creates or mutates the user itself.
type DeviceSet struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	Role      UserRole  `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

type Device struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey"`
	DeviceSetID uuid.UUID `gorm:"type:uuid;not null;index"`
	// Base64-encoded X25519 public key. Stored and served verbatim; the relay
	// only uses it when sealing contact requests.
	IdentityPublicKey string    `gorm:"type:text;not null"`
	SignedPreKey      string    `gorm:"type:text;not null"`
	CreatedAt         time.Time `gorm:"not null;autoCreateTime"`
}

// Message is one queued inbox entry. Seq is the insertion-order key within a
// device's inbox; drains observe entries in Seq order.
type Message struct {
	Seq        int64     `gorm:"primaryKey;autoIncrement"`
	ID         uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	DeviceID   uuid.UUID `gorm:"type:uuid;not null;index"`
	Ciphertext []byte    `gorm:"type:bytea;not null"`

	SenderID           uuid.UUID `gorm:"type:uuid;not null"`
	SenderDeviceID     uuid.UUID `gorm:"type:uuid;not null"`
	SenderIdentityKey  string    `gorm:"type:text;not null"`
	SenderEphemeralKey *string   `gorm:"type:text"`
	ChainKey           *string   `gorm:"type:text"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (m Message) SeqNo() int64 { return m.Seq }

// ContactRequest is one queued first-contact entry for a provider device. Both
// payload fields are sealed against that device's identity public key.
type ContactRequest struct {
	Seq      int64     `gorm:"primaryKey;autoIncrement"`
	ID       uuid.UUID `gorm:"type:uuid;not null;uniqueIndex"`
	DeviceID uuid.UUID `gorm:"type:uuid;not null;index"`

	SenderIDCiphertext []byte `gorm:"type:bytea;not null"`
	MessageCiphertext  []byte `gorm:"type:bytea;not null"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime"`
}

func (c ContactRequest) SeqNo() int64 { return c.Seq }
