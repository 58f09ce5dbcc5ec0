package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"relay/internal/domain"
	"relay/internal/dto"
	"relay/internal/sealedbox"
	"relay/internal/store"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Caller is the already-authenticated identity the transport layer hands to
// every relay operation. Credential validation happened upstream.
type Caller struct {
	UserID uuid.UUID
	Role   domain.UserRole
}

type Relay struct {
	store *store.Store
	now   func() time.Time
}

func New(st *store.Store) *Relay {
	return &Relay{store: st, now: time.Now}
}

func (r *Relay) RegisterDevice(ctx context.Context, req dto.RegisterDeviceRequest) (dto.RegisterDeviceResponse, error) {
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return dto.RegisterDeviceResponse{}, fmt.Errorf("%w: invalid userId", ErrInvalidRequest)
	}
	role := domain.UserRole(req.Role)
	if !role.Valid() {
		return dto.RegisterDeviceResponse{}, fmt.Errorf("%w: invalid role", ErrInvalidRequest)
	}
	deviceID, err := parseOrGenerate(req.DeviceID)
	if err != nil {
		return dto.RegisterDeviceResponse{}, fmt.Errorf("%w: invalid deviceId", ErrInvalidRequest)
	}
	if !sealedbox.ValidKey(req.IdentityPublicKey) {
		return dto.RegisterDeviceResponse{}, fmt.Errorf("%w: identityPublicKey is not a base64 X25519 key", ErrInvalidRequest)
	}
	if req.SignedPreKey == "" {
		return dto.RegisterDeviceResponse{}, fmt.Errorf("%w: missing signedPreKey", ErrInvalidRequest)
	}

	var setID uuid.UUID
	err = r.store.WithTx(ctx, func(tx *store.Store) error {
		set, err := tx.Registry().DeviceSetForUser(ctx, userID)
		switch {
		case err == nil:
			if set.Role != role {
				return fmt.Errorf("%w: role does not match existing device set", ErrInvalidRequest)
			}
			setID = set.ID
		case errors.Is(err, store.ErrRecordNotFound):
			setID = uuid.New()
			if err := tx.Registry().CreateDeviceSet(ctx, domain.DeviceSet{ID: setID, UserID: userID, Role: role}); err != nil {
				return err
			}
		default:
			return err
		}
		return tx.Registry().AddDevice(ctx, domain.Device{
			ID:                deviceID,
			DeviceSetID:       setID,
			IdentityPublicKey: req.IdentityPublicKey,
			SignedPreKey:      req.SignedPreKey,
		})
	})
	if err != nil {
		return dto.RegisterDeviceResponse{}, err
	}

	return dto.RegisterDeviceResponse{
		UserID:      userID.String(),
		DeviceID:    deviceID.String(),
		DeviceSetID: setID.String(),
	}, nil
}

// ListDevices returns the public key material a sender needs to encrypt one
// payload per recipient device before calling Deposit.
func (r *Relay) ListDevices(ctx context.Context, userID uuid.UUID) (dto.DeviceListResponse, error) {
	devices, err := r.store.Registry().DevicesForUser(ctx, userID)
	if err != nil {
		return dto.DeviceListResponse{}, err
	}
	if len(devices) == 0 {
		return dto.DeviceListResponse{}, ErrTargetHasNoDevices
	}
	resp := dto.DeviceListResponse{UserID: userID.String(), Devices: make([]dto.DeviceKeys, 0, len(devices))}
	for _, d := range devices {
		resp.Devices = append(resp.Devices, dto.DeviceKeys{
			DeviceID:          d.ID.String(),
			IdentityPublicKey: d.IdentityPublicKey,
			SignedPreKey:      d.SignedPreKey,
		})
	}
	return resp, nil
}

// Deposit fans one logical message out to every device of the target user.
// The caller supplies one pre-encrypted payload per device; all appends commit
// in a single transaction, so a failed fan-out persists nothing.
func (r *Relay) Deposit(ctx context.Context, caller Caller, in dto.DepositRequest) (dto.DepositResponse, error) {
	targetID, err := uuid.Parse(in.TargetUserID)
	if err != nil {
		return dto.DepositResponse{}, fmt.Errorf("%w: invalid targetUserId", ErrInvalidRequest)
	}
	if len(in.Payloads) == 0 {
		return dto.DepositResponse{}, fmt.Errorf("%w: no payloads", ErrInvalidRequest)
	}
	depositID := uuid.Nil
	if in.DepositID != "" {
		if depositID, err = uuid.Parse(in.DepositID); err != nil {
			return dto.DepositResponse{}, fmt.Errorf("%w: invalid depositId", ErrInvalidRequest)
		}
	}

	byDevice := make(map[uuid.UUID]dto.DevicePayload, len(in.Payloads))
	for _, p := range in.Payloads {
		deviceID, err := uuid.Parse(p.DeviceID)
		if err != nil {
			return dto.DepositResponse{}, fmt.Errorf("%w: invalid payload deviceId", ErrInvalidRequest)
		}
		if len(p.Ciphertext) == 0 || p.SenderIdentityKey == "" {
			return dto.DepositResponse{}, fmt.Errorf("%w: payload missing ciphertext or sender key", ErrInvalidRequest)
		}
		if _, dup := byDevice[deviceID]; dup {
			return dto.DepositResponse{}, fmt.Errorf("%w: duplicate payload for device %s", ErrInvalidRequest, deviceID)
		}
		byDevice[deviceID] = p
	}

	var delivered int
	err = r.store.WithTx(ctx, func(tx *store.Store) error {
		devices, err := tx.Registry().DevicesForUser(ctx, targetID)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			return ErrTargetHasNoDevices
		}
		for _, d := range devices {
			p, ok := byDevice[d.ID]
			if !ok {
				return fmt.Errorf("%w: missing payload for device %s", ErrInvalidRequest, d.ID)
			}
			delete(byDevice, d.ID)

			senderDeviceID, err := uuid.Parse(p.SenderDeviceID)
			if err != nil {
				return fmt.Errorf("%w: invalid senderDeviceId", ErrInvalidRequest)
			}
			msg := domain.Message{
				ID:                 messageID(depositID, d.ID),
				DeviceID:           d.ID,
				Ciphertext:         append([]byte(nil), p.Ciphertext...),
				SenderID:           caller.UserID,
				SenderDeviceID:     senderDeviceID,
				SenderIdentityKey:  p.SenderIdentityKey,
				SenderEphemeralKey: p.SenderEphemeralKey,
				ChainKey:           p.ChainKey,
				CreatedAt:          r.now().UTC(),
			}
			if err := tx.Mailboxes().AppendMessage(ctx, &msg); err != nil {
				return err
			}
		}
		if len(byDevice) != 0 {
			return fmt.Errorf("%w: payload for device outside the target's device set", ErrInvalidRequest)
		}
		delivered = len(devices)
		return nil
	})
	if err != nil {
		// A replayed depositId collides on the derived message ID. The first
		// attempt already delivered; report the retry as a no-op success.
		if depositID != uuid.Nil && errors.Is(err, gorm.ErrDuplicatedKey) {
			return dto.DepositResponse{Duplicate: true}, nil
		}
		return dto.DepositResponse{}, err
	}
	return dto.DepositResponse{Delivered: delivered}, nil
}

// DepositContact delivers a first-contact request to every device of the
// target provider. This is the one path where the relay encrypts: the sender
// shares no session with any provider device yet, so the relay seals the
// sender id and message against each device's identity public key.
func (r *Relay) DepositContact(ctx context.Context, caller Caller, in dto.ContactDepositRequest) (dto.ContactDepositResponse, error) {
	if caller.Role != domain.RolePatient {
		return dto.ContactDepositResponse{}, fmt.Errorf("%w: only patients initiate contact", ErrUnauthorized)
	}
	providerID, err := uuid.Parse(in.ProviderID)
	if err != nil {
		return dto.ContactDepositResponse{}, fmt.Errorf("%w: invalid providerId", ErrInvalidRequest)
	}
	if in.Message == "" {
		return dto.ContactDepositResponse{}, fmt.Errorf("%w: empty message", ErrInvalidRequest)
	}

	var delivered int
	err = r.store.WithTx(ctx, func(tx *store.Store) error {
		set, err := tx.Registry().DeviceSetForUser(ctx, providerID)
		if err != nil {
			if errors.Is(err, store.ErrRecordNotFound) {
				return ErrTargetHasNoDevices
			}
			return err
		}
		if set.Role != domain.RoleProvider {
			return fmt.Errorf("%w: target is not a provider", ErrInvalidRequest)
		}
		devices, err := tx.Registry().DevicesForUser(ctx, providerID)
		if err != nil {
			return err
		}
		if len(devices) == 0 {
			return ErrTargetHasNoDevices
		}
		for _, d := range devices {
			senderCT, err := sealedbox.Seal([]byte(caller.UserID.String()), d.IdentityPublicKey)
			if err != nil {
				return fmt.Errorf("seal sender id for device %s: %w", d.ID, err)
			}
			messageCT, err := sealedbox.Seal([]byte(in.Message), d.IdentityPublicKey)
			if err != nil {
				return fmt.Errorf("seal message for device %s: %w", d.ID, err)
			}
			req := domain.ContactRequest{
				ID:                 uuid.New(),
				DeviceID:           d.ID,
				SenderIDCiphertext: senderCT,
				MessageCiphertext:  messageCT,
				CreatedAt:          r.now().UTC(),
			}
			if err := tx.Mailboxes().AppendContactRequest(ctx, &req); err != nil {
				return err
			}
		}
		delivered = len(devices)
		return nil
	})
	if err != nil {
		return dto.ContactDepositResponse{}, err
	}
	return dto.ContactDepositResponse{Delivered: delivered}, nil
}

// Retrieve drains the device's inbox after checking the caller owns the
// device. Returned entries are gone from the server; there is no
// acknowledgement round-trip.
func (r *Relay) Retrieve(ctx context.Context, caller Caller, deviceID uuid.UUID) (dto.DrainResponse, error) {
	if err := r.authorizeDevice(ctx, caller, deviceID, false); err != nil {
		return dto.DrainResponse{}, err
	}
	msgs, err := r.store.Mailboxes().DrainMessages(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return dto.DrainResponse{}, ErrDeviceNotFound
		}
		return dto.DrainResponse{}, err
	}
	resp := dto.DrainResponse{DeviceID: deviceID.String(), Messages: make([]dto.MessageEnvelope, 0, len(msgs))}
	for _, m := range msgs {
		resp.Messages = append(resp.Messages, dto.MessageEnvelope{
			ID:                 m.ID.String(),
			Ciphertext:         m.Ciphertext,
			SenderID:           m.SenderID.String(),
			SenderDeviceID:     m.SenderDeviceID.String(),
			SenderIdentityKey:  m.SenderIdentityKey,
			SenderEphemeralKey: m.SenderEphemeralKey,
			ChainKey:           m.ChainKey,
			CreatedAt:          m.CreatedAt,
		})
	}
	return resp, nil
}

// RetrieveContact drains the device's contact inbox. Only provider devices
// have one.
func (r *Relay) RetrieveContact(ctx context.Context, caller Caller, deviceID uuid.UUID) (dto.ContactDrainResponse, error) {
	if err := r.authorizeDevice(ctx, caller, deviceID, true); err != nil {
		return dto.ContactDrainResponse{}, err
	}
	reqs, err := r.store.Mailboxes().DrainContactRequests(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return dto.ContactDrainResponse{}, ErrDeviceNotFound
		}
		return dto.ContactDrainResponse{}, err
	}
	resp := dto.ContactDrainResponse{DeviceID: deviceID.String(), Requests: make([]dto.ContactEnvelope, 0, len(reqs))}
	for _, c := range reqs {
		resp.Requests = append(resp.Requests, dto.ContactEnvelope{
			ID:                 c.ID.String(),
			SenderIDCiphertext: c.SenderIDCiphertext,
			MessageCiphertext:  c.MessageCiphertext,
			CreatedAt:          c.CreatedAt,
		})
	}
	return resp, nil
}

// RemoveUser deletes the user's device set, devices and both queue kinds, and
// reports per-table counts. Idempotent: removing an unknown user reports
// zeros.
func (r *Relay) RemoveUser(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	return r.store.RemoveUser(ctx, userID)
}

func (r *Relay) authorizeDevice(ctx context.Context, caller Caller, deviceID uuid.UUID, wantProvider bool) error {
	set, err := r.store.Registry().OwnerOf(ctx, deviceID)
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrDeviceNotFound
		}
		return err
	}
	if set.UserID != caller.UserID {
		return fmt.Errorf("%w: device belongs to another user", ErrUnauthorized)
	}
	if wantProvider && set.Role != domain.RoleProvider {
		return fmt.Errorf("%w: device has no contact inbox", ErrUnauthorized)
	}
	return nil
}

// messageID derives a deterministic id when the caller supplied a depositId,
// so a retried fan-out collides instead of duplicating.
func messageID(depositID, deviceID uuid.UUID) uuid.UUID {
	if depositID == uuid.Nil {
		return uuid.New()
	}
	return uuid.NewSHA1(depositID, deviceID[:])
}

func parseOrGenerate(id string) (uuid.UUID, error) {
	if id == "" {
		return uuid.New(), nil
	}
	return uuid.Parse(id)
}
