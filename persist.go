package nextcrm

import (
	"github.com/MrEthical07/nextcrm/session"
	"github.com/redis/go-redis/v9"
)

type (
	Persister       = session.Persister
	MemoryPersister = session.MemoryPersister
	FilePersister   = session.FilePersister
	RedisPersister  = session.RedisPersister
)

func NewMemoryPersister() *MemoryPersister {
	return session.NewMemoryPersister()
}

// NewFilePersister keeps the snapshot in dir.
func NewFilePersister(dir string) *FilePersister {
	return session.NewFilePersister(dir)
}

// NewRedisPersister keeps the snapshot for browser session id under the
// prefix and TTL from cfg.
func NewRedisPersister(client redis.UniversalClient, cfg SessionConfig, id string) *RedisPersister {
	return session.NewRedisPersister(client, cfg.RedisPrefix, id, cfg.SnapshotTTL)
}
