package service

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/rl1809/cartsync/internal/core/domain"
	"github.com/rl1809/cartsync/internal/port"
)

const DefaultBackupKey = "cart_backup"

// Backup keeps the last known non-empty cart under one fixed key. It is a
// fallback for an empty fetch after a reload, not an offline queue.
type Backup struct {
	store  port.KeyValueStore
	key    string
	logger *zap.Logger
}

func NewBackup(store port.KeyValueStore, key string, logger *zap.Logger) *Backup {
	if key == "" {
		key = DefaultBackupKey
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backup{store: store, key: key, logger: logger}
}

func (b *Backup) Save(ctx context.Context, items domain.Snapshot) error {
	payload, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal backup: %w", err)
	}
	if err := b.store.Set(ctx, b.key, payload); err != nil {
		return fmt.Errorf("save backup: %w", err)
	}
	return nil
}

// Load returns the saved snapshot and whether one exists. A payload that no
// longer decodes is deleted and reported as absent.
func (b *Backup) Load(ctx context.Context) (domain.Snapshot, bool, error) {
	payload, err := b.store.Get(ctx, b.key)
	if err != nil {
		return nil, false, fmt.Errorf("load backup: %w", err)
	}
	if payload == nil {
		return nil, false, nil
	}

	var items domain.Snapshot
	if err := json.Unmarshal(payload, &items); err != nil {
		b.logger.Warn("discarding unreadable cart backup", zap.String("key", b.key), zap.Error(err))
		if delErr := b.store.Delete(ctx, b.key); delErr != nil {
			return nil, false, fmt.Errorf("clear unreadable backup: %w", delErr)
		}
		return nil, false, nil
	}
	if len(items) == 0 {
		return nil, false, nil
	}
	return items, true, nil
}

func (b *Backup) Clear(ctx context.Context) error {
	if err := b.store.Delete(ctx, b.key); err != nil {
		return fmt.Errorf("clear backup: %w", err)
	}
	return nil
}
