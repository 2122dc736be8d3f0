package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	rlock "github.com/gotomicro/redis-lock"
	"github.com/sirupsen/logrus"
)

var ErrNotAcquired = errors.New("lock not acquired")

// Locker serializes work per reference across callers.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

type RedisLocker struct {
	client     *rlock.Client
	prefix     string
	expiration time.Duration
	retry      time.Duration
	maxRetries int
	timeout    time.Duration
	logger     logrus.FieldLogger
}

type RedisLockerConfig struct {
	Prefix        string
	Expiration    time.Duration
	RetryInterval time.Duration
	MaxRetries    int
	Timeout       time.Duration
}

func NewRedisLocker(client *rlock.Client, cfg RedisLockerConfig) *RedisLocker {
	if cfg.Expiration <= 0 {
		cfg.Expiration = 30 * time.Second
	}
	if cfg.RetryInterval <= 0 {
		cfg.RetryInterval = 100 * time.Millisecond
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = time.Second
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "wxpay:lock:"
	}
	return &RedisLocker{
		client:     client,
		prefix:     cfg.Prefix,
		expiration: cfg.Expiration,
		retry:      cfg.RetryInterval,
		maxRetries: cfg.MaxRetries,
		timeout:    cfg.Timeout,
		logger:     logrus.WithField("module", "lock"),
	}
}

func (l *RedisLocker) Acquire(ctx context.Context, key string) (func(), error) {
	lk, err := l.client.Lock(ctx, l.prefix+key, l.expiration, &rlock.FixIntervalRetry{
		Interval: l.retry,
		Max:      l.maxRetries,
	}, l.timeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, err)
	}

	return func() {
		unlockCtx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		if err := lk.Unlock(unlockCtx); err != nil {
			l.logger.WithError(err).WithField("key", key).Warn("Failed to release lock")
		}
	}, nil
}

// LocalLocker is an in-process keyed mutex, used when no Redis is configured.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*localEntry
}

type localEntry struct {
	ch   chan struct{}
	refs int
}

func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: map[string]*localEntry{}}
}

func (l *LocalLocker) Acquire(ctx context.Context, key string) (func(), error) {
	l.mu.Lock()
	entry, ok := l.locks[key]
	if !ok {
		entry = &localEntry{ch: make(chan struct{}, 1)}
		l.locks[key] = entry
	}
	entry.refs++
	l.mu.Unlock()

	select {
	case entry.ch <- struct{}{}:
	case <-ctx.Done():
		l.drop(key, entry)
		return nil, fmt.Errorf("%w: %s: %v", ErrNotAcquired, key, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-entry.ch
			l.drop(key, entry)
		})
	}, nil
}

func (l *LocalLocker) drop(key string, entry *localEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.refs--
	if entry.refs == 0 {
		delete(l.locks, key)
	}
}
