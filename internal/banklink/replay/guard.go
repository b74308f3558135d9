// Package replay implements the 24-hour transaction dedup guard the EC
// protocol requires. The check is a single atomic SET-if-not-exists; the
// original service read and wrote in two steps, which raced under
// concurrent submissions.
package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const window = 24 * time.Hour

type Guard struct {
	rdb *redis.Client
}

func NewGuard(rdb *redis.Client) *Guard {
	return &Guard{rdb: rdb}
}

func key(merchantID, transactionID string) string {
	return fmt.Sprintf("banklink:replay:%s:%s", merchantID, transactionID)
}

// CheckAndMark marks the (merchant, transaction) pair and reports whether
// it had already been seen inside the rolling window. Duplicates are
// advisory for callers: the contract is a warning, never a hard error.
func (g *Guard) CheckAndMark(ctx context.Context, merchantID, transactionID string) (alreadySeen bool, err error) {
	set, err := g.rdb.SetNX(ctx, key(merchantID, transactionID), 1, window).Result()
	if err != nil {
		return false, err
	}
	return !set, nil
}
