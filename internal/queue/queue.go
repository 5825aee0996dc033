package queue

import (
	"github.com/hibiken/asynq"
)

// Task type names shared by the API (producer) and the worker (consumer).
const (
	TaskOrderEmail = "email:order"
)

// RedisOpt builds the asynq connection options from a redis URL.
func RedisOpt(redisURL string) (asynq.RedisConnOpt, error) {
	return asynq.ParseRedisURI(redisURL)
}

// NewClient returns an asynq producer client.
func NewClient(opt asynq.RedisConnOpt) *asynq.Client {
	return asynq.NewClient(opt)
}

// NewServer returns an asynq consumer server.
func NewServer(opt asynq.RedisConnOpt, concurrency int) *asynq.Server {
	if concurrency <= 0 {
		concurrency = 10
	}
	return asynq.NewServer(opt, asynq.Config{
		Concurrency: concurrency,
		Queues: map[string]int{
			"default": 1,
		},
	})
}
