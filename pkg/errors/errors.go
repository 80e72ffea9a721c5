package errors

import "errors"

// ErrOptimisticLock 乐观锁冲突：记录已被其他操作修改
var ErrOptimisticLock = errors.New("数据已被其他操作修改，请刷新后重试")

// ErrLockNotAcquired 分布式锁已被其他请求持有
var ErrLockNotAcquired = errors.New("资源正被其他请求占用，请稍后重试")
