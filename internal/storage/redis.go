package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const defaultRedisChannel = "kleis:changes"

// RedisOptions configure a RedisSlot.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Channel  string // pub/sub channel for change envelopes
	MaxBytes int    // zero uses DefaultMaxBytes, negative disables the quota
	TTL      time.Duration
	Logger   logrus.FieldLogger
}

// RedisSlot keeps values in Redis and announces every write on a pub/sub
// channel so other processes sharing the server can reload.
type RedisSlot struct {
	client   *redis.Client
	channel  string
	origin   string
	maxBytes int
	ttl      time.Duration
	log      logrus.FieldLogger

	mu        sync.Mutex
	listeners listenerSet
	pubsub    *redis.PubSub
}

type changeEnvelope struct {
	Origin string `json:"origin"`
	Key    string `json:"key"`
}

// NewRedisSlot connects to Redis and verifies the connection with a ping.
func NewRedisSlot(ctx context.Context, opts RedisOptions) (*RedisSlot, error) {
	if strings.TrimSpace(opts.Addr) == "" {
		return nil, fmt.Errorf("redis addr is empty")
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         opts.Addr,
		Password:     opts.Password,
		DB:           opts.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolTimeout:  4 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return newRedisSlot(rdb, opts), nil
}

func newRedisSlot(rdb *redis.Client, opts RedisOptions) *RedisSlot {
	channel := strings.TrimSpace(opts.Channel)
	if channel == "" {
		channel = defaultRedisChannel
	}
	maxBytes := opts.MaxBytes
	if maxBytes == 0 {
		maxBytes = DefaultMaxBytes
	}
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	origin := uuid.NewString()
	return &RedisSlot{
		client:   rdb,
		channel:  channel,
		origin:   origin,
		maxBytes: maxBytes,
		ttl:      opts.TTL,
		log:      log.WithFields(logrus.Fields{"component": "storage.redis", "origin": origin}),
	}
}

// Get reads the value stored under key.
func (s *RedisSlot) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Set writes the value and publishes a change envelope in one transaction.
func (s *RedisSlot) Set(ctx context.Context, key string, value []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := checkQuota(s.maxBytes, key, value); err != nil {
		return err
	}
	return s.writeAndAnnounce(ctx, key, func(pipe redis.Pipeliner) {
		pipe.Set(ctx, key, value, s.ttl)
	})
}

// Delete removes the key and publishes a change envelope.
func (s *RedisSlot) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	return s.writeAndAnnounce(ctx, key, func(pipe redis.Pipeliner) {
		pipe.Del(ctx, key)
	})
}

func (s *RedisSlot) writeAndAnnounce(ctx context.Context, key string, write func(redis.Pipeliner)) error {
	envelope, err := json.Marshal(changeEnvelope{Origin: s.origin, Key: key})
	if err != nil {
		return fmt.Errorf("marshal change envelope: %w", err)
	}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		write(pipe)
		pipe.Publish(ctx, s.channel, envelope)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis write %s: %w", key, err)
	}
	return nil
}

// OnExternalChange registers fn for writes announced by other slots. The
// first registration subscribes to the channel; Close unsubscribes.
func (s *RedisSlot) OnExternalChange(fn func(key string)) func() {
	s.mu.Lock()
	id := s.listeners.add(fn)
	if s.pubsub == nil {
		s.pubsub = s.client.Subscribe(context.Background(), s.channel)
		go s.receive(s.pubsub.Channel())
	}
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.listeners.remove(id)
			s.mu.Unlock()
		})
	}
}

func (s *RedisSlot) receive(messages <-chan *redis.Message) {
	for msg := range messages {
		key, ok := s.decode(msg.Payload)
		if !ok {
			continue
		}
		s.mu.Lock()
		fns := s.listeners.snapshot()
		s.mu.Unlock()
		for _, fn := range fns {
			fn(key)
		}
	}
}

// decode returns the changed key for envelopes published by other origins.
func (s *RedisSlot) decode(payload string) (string, bool) {
	var env changeEnvelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		s.log.WithError(err).Warn("drop malformed change envelope")
		return "", false
	}
	if env.Origin == s.origin || env.Key == "" {
		return "", false
	}
	return env.Key, true
}

// Close unsubscribes and closes the Redis client.
func (s *RedisSlot) Close() error {
	s.mu.Lock()
	ps := s.pubsub
	s.pubsub = nil
	s.mu.Unlock()

	var errs []error
	if ps != nil {
		errs = append(errs, ps.Close())
	}
	errs = append(errs, s.client.Close())
	return errors.Join(errs...)
}
