package database

import (
	"context"

	"github.com/go-redis/redis/v8"

	"ai-doc-chat-go/pkg/log"
)

var RDB *redis.Client

// InitRedis initializes the Redis client connection.
func InitRedis(addr, password string, db int) {
	RDB = redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if err := RDB.Ping(ctx).Err(); err != nil {
		log.Fatal("failed to connect to redis", err)
	}

	log.Info("Redis client connected successfully")
}
