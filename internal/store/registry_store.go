package store

import (
	"context"

	"relay/internal/domain"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// RegistryStore resolves user identities to device sets and back. Read-only
// with respect to the relay operations; the registration flow is the writer.
type RegistryStore struct{ db *gorm.DB }

func (s *Store) Registry() *RegistryStore { return &RegistryStore{db: s.DB} }

func (r *RegistryStore) DeviceSetForUser(ctx context.Context, userID uuid.UUID) (*domain.DeviceSet, error) {
	var set domain.DeviceSet
	if err := r.db.WithContext(ctx).First(&set, "user_id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &set, nil
}

// DevicesForUser returns every device in the user's device set in registration
// order. An empty slice means the user has no registered devices (or does not
// exist at all; the relay treats both the same way).
func (r *RegistryStore) DevicesForUser(ctx context.Context, userID uuid.UUID) ([]domain.Device, error) {
	var devices []domain.Device
	err := r.db.WithContext(ctx).
		Select("devices.*").
		Joins("JOIN device_sets ON device_sets.id = devices.device_set_id").
		Where("device_sets.user_id = ?", userID).
		Order("devices.created_at ASC, devices.id ASC").
		Find(&devices).Error
	if err != nil {
		return nil, err
	}
	return devices, nil
}

func (r *RegistryStore) Device(ctx context.Context, deviceID uuid.UUID) (*domain.Device, error) {
	var device domain.Device
	if err := r.db.WithContext(ctx).First(&device, "id = ?", deviceID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &device, nil
}

// OwnerOf resolves a device to its owning device set, used for drain
// authorization checks.
func (r *RegistryStore) OwnerOf(ctx context.Context, deviceID uuid.UUID) (*domain.DeviceSet, error) {
	device, err := r.Device(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	var set domain.DeviceSet
	if err := r.db.WithContext(ctx).First(&set, "id = ?", device.DeviceSetID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &set, nil
}

func (r *RegistryStore) CreateDeviceSet(ctx context.Context, set domain.DeviceSet) error {
	return r.db.WithContext(ctx).Create(&set).Error
}

func (r *RegistryStore) AddDevice(ctx context.Context, device domain.Device) error {
	return r.db.WithContext(ctx).Create(&device).Error
}

// RemoveUser deletes the user's device set and everything hanging off it:
// devices, queued messages and queued contact requests. Counts of affected
// rows are captured before deletion, keyed by table.
func (s *Store) RemoveUser(ctx context.Context, userID uuid.UUID) (map[string]int64, error) {
	removed := map[string]int64{}

	err := s.WithTx(ctx, func(tx *Store) error {
		db := tx.DB.WithContext(ctx)

		count := func(label string, query *gorm.DB) error {
			var total int64
			if err := query.Count(&total).Error; err != nil {
				return err
			}
			removed[label] = total
			return nil
		}

		deviceIDs := db.Model(&domain.Device{}).
			Select("devices.id").
			Joins("JOIN device_sets ON device_sets.id = devices.device_set_id").
			Where("device_sets.user_id = ?", userID)

		if err := count("deviceSets", db.Model(&domain.DeviceSet{}).Where("user_id = ?", userID)); err != nil {
			return err
		}
		if err := count("devices", db.Model(&domain.Device{}).Where("id IN (?)", deviceIDs)); err != nil {
			return err
		}
		if err := count("messages", db.Model(&domain.Message{}).Where("device_id IN (?)", deviceIDs)); err != nil {
			return err
		}
		if err := count("contactRequests", db.Model(&domain.ContactRequest{}).Where("device_id IN (?)", deviceIDs)); err != nil {
			return err
		}

		if err := db.Where("device_id IN (?)", deviceIDs).Delete(&domain.Message{}).Error; err != nil {
			return err
		}
		if err := db.Where("device_id IN (?)", deviceIDs).Delete(&domain.ContactRequest{}).Error; err != nil {
			return err
		}
		if err := db.Where("id IN (?)", deviceIDs).Delete(&domain.Device{}).Error; err != nil {
			return err
		}
		return db.Where("user_id = ?", userID).Delete(&domain.DeviceSet{}).Error
	})

	return removed, err
}
