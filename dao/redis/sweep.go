package redis

import (
	"context"

	"github.com/pkg/errors"
)

const (
	keySweepLease = "mhb:sweep:lease"
	keySeenPost   = "mhb:seen:" // + post_id
)

// AcquireSweepLease 扫描互斥：同一时刻只允许一个检测扫描在跑。
// 返回 false 表示别的扫描还持有租约
func AcquireSweepLease(holder string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	ok, err := rdb.SetNX(ctx, keySweepLease, holder, sweepLeaseTime).Result()
	return ok, errors.Wrap(err, "redis:AcquireSweepLease")
}

func ReleaseSweepLease() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	err := rdb.Del(ctx, keySweepLease).Err()
	return errors.Wrap(err, "redis:ReleaseSweepLease")
}

// MarkPostSeen 拉取去重：带 TTL，过期后落到 MySQL 的唯一索引兜底
func MarkPostSeen(postID string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	err := rdb.Set(ctx, keySeenPost+postID, 1, seenPostExpireTime).Err()
	return errors.Wrap(err, "redis:MarkPostSeen")
}

func PostSeen(postID string) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	n, err := rdb.Exists(ctx, keySeenPost+postID).Result()
	if err != nil {
		return false, errors.Wrap(err, "redis:PostSeen")
	}
	return n > 0, nil
}

// ExtendSweepLease 长扫描时续约，避免预算内的扫描中途丢租约
func ExtendSweepLease() error {
	ctx, cancel := context.WithTimeout(context.Background(), redisTimeout)
	defer cancel()

	err := rdb.Expire(ctx, keySweepLease, sweepLeaseTime).Err()
	return errors.Wrap(err, "redis:ExtendSweepLease")
}
