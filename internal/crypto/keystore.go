package crypto

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"sync"

	"github.com/FairForge/containerdispatch/internal/common"
	"go.uber.org/zap"
)

// KeyStore hands out the per-algorithm symmetric keys. Each key is read at
// most once; the outcome (key or error) is kept for the life of the store.
// The slot map is fixed at construction so lookups need no lock.
type KeyStore struct {
	paths  map[Algorithm]string
	slots  map[Algorithm]*keySlot
	logger *zap.Logger
}

type keySlot struct {
	once sync.Once
	key  []byte
	err  error
}

// NewKeyStore creates a store that lazily loads each algorithm's key from
// the hex key file at paths[alg]
func NewKeyStore(paths map[Algorithm]string, logger *zap.Logger) *KeyStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	ks := &KeyStore{
		paths:  make(map[Algorithm]string, len(paths)),
		slots:  make(map[Algorithm]*keySlot, len(Algorithms)),
		logger: logger,
	}
	for alg, path := range paths {
		ks.paths[alg] = path
	}
	for _, alg := range Algorithms {
		ks.slots[alg] = &keySlot{}
	}
	return ks
}

// NewStaticKeyStore builds a store from raw keys already in memory
func NewStaticKeyStore(keys map[Algorithm][]byte) (*KeyStore, error) {
	ks := NewKeyStore(nil, nil)
	for alg, key := range keys {
		slot, ok := ks.slots[alg]
		if !ok {
			return nil, common.ErrInvalid("algorithm", "%q takes no key", alg)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: %s key is %d bytes, want %d", common.ErrInvalidKeyLength, alg, len(key), KeySize)
		}
		k := append([]byte(nil), key...)
		slot.once.Do(func() { slot.key = k })
	}
	for alg, slot := range ks.slots {
		slot.once.Do(func() {
			slot.err = fmt.Errorf("%w: no %s key provisioned", common.ErrKeyNotFound, alg)
		})
	}
	return ks, nil
}

// Key returns the key for alg, loading it on first use. The returned slice
// is shared and must not be modified.
func (ks *KeyStore) Key(alg Algorithm) ([]byte, error) {
	slot, ok := ks.slots[alg]
	if !ok {
		return nil, common.ErrInvalid("algorithm", "%q takes no key", alg)
	}
	slot.once.Do(func() {
		path := ks.paths[alg]
		slot.key, slot.err = LoadKeyFile(path)
		if slot.err != nil {
			ks.logger.Error("failed to load key",
				zap.String("algorithm", string(alg)),
				zap.String("path", path),
				zap.Error(slot.err))
			return
		}
		ks.logger.Info("loaded key",
			zap.String("algorithm", string(alg)),
			zap.String("path", path))
	})
	return slot.key, slot.err
}

// Preload loads the given keys eagerly, returning the first failure
func (ks *KeyStore) Preload(algs ...Algorithm) error {
	for _, alg := range algs {
		if !alg.Enabled() {
			continue
		}
		if _, err := ks.Key(alg); err != nil {
			return err
		}
	}
	return nil
}

// LoadKeyFile reads a key file holding a single 64-character hex token
func LoadKeyFile(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("%w: no key file configured", common.ErrKeyNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", common.ErrKeyNotFound, path)
		}
		return nil, fmt.Errorf("%w: %s: %v", common.ErrKeyNotFound, path, err)
	}

	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", common.ErrInvalidKeyLength, path)
	}
	token := fields[0]
	if len(token) != 2*KeySize {
		return nil, fmt.Errorf("%w: %s holds %d hex chars, want %d", common.ErrInvalidKeyLength, path, len(token), 2*KeySize)
	}

	key, err := hex.DecodeString(token)
	if err != nil || len(key) != KeySize {
		return nil, fmt.Errorf("%w: %s is not valid hex", common.ErrInvalidKeyLength, path)
	}
	return key, nil
}

// GenerateKey creates a new random 32-byte key
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}

// GenerateKeyHex creates a new random key as a 64-character hex string
func GenerateKeyHex() (string, error) {
	key, err := GenerateKey()
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(key), nil
}

// WriteKeyFile provisions a fresh key at path, readable by the owner only.
// An existing file is never overwritten.
func WriteKeyFile(path string) error {
	keyHex, err := GenerateKeyHex()
	if err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("create key file: %w", err)
	}
	if _, err := f.WriteString(keyHex + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("write key file: %w", err)
	}
	return f.Close()
}
