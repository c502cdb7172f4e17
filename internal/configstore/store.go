// Package configstore provides typed get/set access to persisted configuration.
package configstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/pricofy/translation-relay/internal/domain"
)

// Well-known keys, one per logical config type.
const (
	KeyTranslation = "translationConfig"
	KeyRules       = "rulesConfig"
)

// ErrUnknownConfigType is returned for config types other than translation and rules.
var ErrUnknownConfigType = errors.New("unknown config type")

// KeyFor maps a config type to its storage key.
func KeyFor(configType string) (string, error) {
	switch configType {
	case domain.ConfigTypeTranslation:
		return KeyTranslation, nil
	case domain.ConfigTypeRules:
		return KeyRules, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownConfigType, configType)
	}
}

// Store is the typed adapter over a KV backend.
type Store struct {
	kv KV
}

// New wraps kv.
func New(kv KV) *Store {
	return &Store{kv: kv}
}

// Get reads key into a T, returning def when the key has never been set.
func Get[T any](ctx context.Context, s *Store, key string, def T) (T, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return def, fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		return def, nil
	}
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return def, fmt.Errorf("decode %s: %w", key, err)
	}
	return v, nil
}

// Raw returns the stored JSON for key, or nil when unset.
func (s *Store) Raw(ctx context.Context, key string) (json.RawMessage, error) {
	raw, found, err := s.kv.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	if !found {
		return nil, nil
	}
	return raw, nil
}

// Set replaces the whole value stored at key. Concurrent writers are last-write-wins.
func (s *Store) Set(ctx context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	if err := s.kv.Set(ctx, key, raw); err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// TranslationConfig reads the translation config, falling back to defaults.
// Fields missing from an older stored object keep their default values.
func (s *Store) TranslationConfig(ctx context.Context) (domain.TranslationConfig, error) {
	def := domain.DefaultTranslationConfig()
	raw, err := s.Raw(ctx, KeyTranslation)
	if err != nil || raw == nil {
		return def, err
	}
	cfg := def
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return def, fmt.Errorf("decode %s: %w", KeyTranslation, err)
	}
	return cfg, nil
}

// RulesConfig reads the rules config, falling back to defaults.
func (s *Store) RulesConfig(ctx context.Context) (domain.RulesConfig, error) {
	def := domain.DefaultRulesConfig()
	raw, err := s.Raw(ctx, KeyRules)
	if err != nil || raw == nil {
		return def, err
	}
	cfg := def
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return def, fmt.Errorf("decode %s: %w", KeyRules, err)
	}
	return cfg, nil
}

// Defaults returns the default object for a storage key.
func Defaults(key string) any {
	switch key {
	case KeyTranslation:
		return domain.DefaultTranslationConfig()
	case KeyRules:
		return domain.DefaultRulesConfig()
	default:
		return nil
	}
}

// Initialize writes defaults for every key that has not been set yet.
func (s *Store) Initialize(ctx context.Context) error {
	for _, key := range []string{KeyTranslation, KeyRules} {
		_, found, err := s.kv.Get(ctx, key)
		if err != nil {
			return fmt.Errorf("read %s: %w", key, err)
		}
		if found {
			continue
		}
		if err := s.Set(ctx, key, Defaults(key)); err != nil {
			return err
		}
	}
	return nil
}

// Reset overwrites every key with its defaults.
func (s *Store) Reset(ctx context.Context) error {
	for _, key := range []string{KeyTranslation, KeyRules} {
		if err := s.Set(ctx, key, Defaults(key)); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the backend.
func (s *Store) Close() error {
	return s.kv.Close()
}
