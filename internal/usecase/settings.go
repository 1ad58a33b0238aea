package usecase

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"VisaDecisions/internal/ports"
)

// ErrSettingNotFound is returned when a named setting does not exist.
var ErrSettingNotFound = errors.New("setting not found")

// Shorthand values accepted by SettingsService.Set.
const (
	ValueNow       = "t"
	ValueYesterday = "to"
)

// Setting is one key with an optional value.
type Setting struct {
	Key   string
	Value *string
}

// SettingsService is the administrative view over the settings table.
type SettingsService struct {
	store ports.SettingsStore
	now   func() time.Time
}

// NewSettingsService wraps a settings store.
func NewSettingsService(store ports.SettingsStore) *SettingsService {
	return &SettingsService{store: store, now: time.Now}
}

// List returns all settings sorted by key.
func (s *SettingsService) List(ctx context.Context) ([]Setting, error) {
	all, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Setting, 0, len(all))
	for k, v := range all {
		out = append(out, Setting{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

// Get returns a setting's value; a present key with a null value yields nil.
func (s *SettingsService) Get(ctx context.Context, key string) (*string, error) {
	all, err := s.store.ListSettings(ctx)
	if err != nil {
		return nil, err
	}
	v, ok := all[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	return v, nil
}

// Set stores value under key. "t" means now and "to" means 24 hours ago, both
// as UTC RFC3339 timestamps. The stored value is returned.
func (s *SettingsService) Set(ctx context.Context, key, value string) (string, error) {
	switch value {
	case ValueNow:
		value = s.now().UTC().Format(time.RFC3339)
	case ValueYesterday:
		value = s.now().Add(-24 * time.Hour).UTC().Format(time.RFC3339)
	}
	if err := s.store.SetSetting(ctx, key, &value); err != nil {
		return "", err
	}
	return value, nil
}

// Unset keeps key but clears its value.
func (s *SettingsService) Unset(ctx context.Context, key string) error {
	return s.store.SetSetting(ctx, key, nil)
}

// Delete removes key entirely.
func (s *SettingsService) Delete(ctx context.Context, key string) error {
	deleted, err := s.store.DeleteSetting(ctx, key)
	if err != nil {
		return err
	}
	if !deleted {
		return fmt.Errorf("%w: %s", ErrSettingNotFound, key)
	}
	return nil
}

// Reset removes every setting.
func (s *SettingsService) Reset(ctx context.Context) error {
	return s.store.ResetSettings(ctx)
}
