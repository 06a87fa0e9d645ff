package config

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
)

// StorageBackend selects where session and cart state is persisted.
type StorageBackend string

const (
	StorageFile   StorageBackend = "file"
	StorageMemory StorageBackend = "memory"
	StorageRedis  StorageBackend = "redis"
)

const (
	storageBackendVar = "STOREFRONT_STORAGE"
	encryptionKeyVar  = "STOREFRONT_ENCRYPTION_KEY"
	redisAddrVar      = "REDIS_ADDR"
	redisPasswordVar  = "REDIS_PASSWORD"
	redisDBVar        = "REDIS_DB"
	redisPrefixVar    = "REDIS_PREFIX"
)

type StorageConfig interface {
	GetStorageBackend() StorageBackend
	GetStateFile() string
	GetEncryptionKey() (*[32]byte, error)
	GetRedisAddr() string
	GetRedisPassword() string
	GetRedisDB() int
	GetRedisPrefix() string
}

type Storage struct{}

var _ StorageConfig = Storage{}

func (Storage) GetStorageBackend() StorageBackend {
	switch StorageBackend(GetEnv(storageBackendVar, string(StorageFile))) {
	case StorageMemory:
		return StorageMemory
	case StorageRedis:
		return StorageRedis
	default:
		return StorageFile
	}
}

func (Storage) GetStateFile() string {
	return filepath.Join(EnvVars{}.GetDataFolder(), "state.json")
}

// GetEncryptionKey returns nil when no key is configured.
func (Storage) GetEncryptionKey() (*[32]byte, error) {
	raw := GetEnv(encryptionKeyVar, "")
	if raw == "" {
		return nil, nil
	}
	b, err := hex.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", encryptionKeyVar, err)
	}
	if len(b) != 32 {
		return nil, fmt.Errorf("%s must be 32 bytes hex encoded, got %d bytes", encryptionKeyVar, len(b))
	}
	var key [32]byte
	copy(key[:], b)
	return &key, nil
}

func (Storage) GetRedisAddr() string {
	return GetEnv(redisAddrVar, "localhost:6379")
}

func (Storage) GetRedisPassword() string {
	return GetEnv(redisPasswordVar, "")
}

func (Storage) GetRedisDB() int {
	return GetIntEnv(redisDBVar, 0)
}

func (Storage) GetRedisPrefix() string {
	return GetEnv(redisPrefixVar, "storefront:")
}
