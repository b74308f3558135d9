// Package sequence hands out the transaction numbers stamped onto outbound
// results (VK_T_NO, receipt_no, paid codes).
package sequence

import (
	"context"

	"github.com/redis/go-redis/v9"
)

const counterKey = "banklink:transaction:counter"

type Counter struct {
	rdb *redis.Client
}

func NewCounter(rdb *redis.Client) *Counter {
	return &Counter{rdb: rdb}
}

func (c *Counter) Next(ctx context.Context) (int64, error) {
	return c.rdb.Incr(ctx, counterKey).Result()
}
