package redis

import (
	"context"

	goredis "github.com/redis/go-redis/v9"

	"github.com/nkiryanov/vidtube/internal/repository"
)

const DefaultPrefix = "vidtube"

type Storage struct {
	db     goredis.UniversalClient
	prefix string
}

func NewStorage(db goredis.UniversalClient, prefix string) repository.Storage {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &Storage{db: db, prefix: prefix}
}

func (s *Storage) User() repository.UserRepo {
	return &UserRepo{DB: s.db, Prefix: s.prefix}
}

func (s *Storage) Video() repository.VideoRepo {
	return &VideoRepo{DB: s.db, Prefix: s.prefix}
}

// Every repository call is atomic on its own (single command or lua script)
// Redis has no rollback, so fn runs against the same storage and its writes are kept
func (s *Storage) InTx(ctx context.Context, fn func(repository.Storage) error) error {
	return fn(s)
}
