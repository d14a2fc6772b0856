package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

const (
	sessionKeyPrefix = "bookingbot:session:"
	optionsKeyPrefix = "bookingbot:options:"

	// optionsTTL bounds how long an unanswered numbered menu stays resolvable.
	optionsTTL = 24 * time.Hour
)

// RedisStore keeps booking contexts in Redis so sessions survive restarts
// and can be shared across processes.
//
// Staleness is still the lazy in-value check: the record is never expired by
// Redis because durable fields must outlive the 30-minute flow window.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore wires a store over an existing Redis client.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	return &RedisStore{client: client, ttl: ttl, now: time.Now}
}

// Get returns the context and whether its flow state is live.
func (r *RedisStore) Get(ctx context.Context, identity string) (*BookingContext, bool, error) {
	sess, err := r.load(ctx, identity)
	if err != nil {
		return nil, false, err
	}
	if sess == nil {
		return &BookingContext{UpdatedAt: r.now()}, false, nil
	}
	if r.now().Sub(sess.UpdatedAt) > r.ttl {
		sess.Reset(FieldMessageID)
		if err := r.save(ctx, identity, sess); err != nil {
			return nil, false, err
		}
		return sess, false, nil
	}
	return sess, true, nil
}

// Merge applies a partial update, creating the record if needed.
func (r *RedisStore) Merge(ctx context.Context, identity string, p Partial) (*BookingContext, error) {
	sess, err := r.load(ctx, identity)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		sess = &BookingContext{}
	} else if r.now().Sub(sess.UpdatedAt) > r.ttl {
		sess.Reset(FieldMessageID)
	}
	sess.Apply(p)
	sess.UpdatedAt = r.now()
	if err := r.save(ctx, identity, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Clear resets volatile fields; the record is retained for durable fields.
func (r *RedisStore) Clear(ctx context.Context, identity string, keep ...Field) error {
	sess, err := r.load(ctx, identity)
	if err != nil || sess == nil {
		return err
	}
	sess.Reset(keep...)
	sess.UpdatedAt = r.now()
	return r.save(ctx, identity, sess)
}

// ReplaceOptions swaps the identity's numbered-menu options.
func (r *RedisStore) ReplaceOptions(ctx context.Context, identity string, opts []CommandOption) error {
	key := optionsKeyPrefix + identity
	if len(opts) == 0 {
		if err := r.client.Del(ctx, key).Err(); err != nil {
			return fmt.Errorf("session: clear options: %w", err)
		}
		return nil
	}
	data, err := json.Marshal(opts)
	if err != nil {
		return fmt.Errorf("session: marshal options: %w", err)
	}
	if err := r.client.Set(ctx, key, data, optionsTTL).Err(); err != nil {
		return fmt.Errorf("session: store options: %w", err)
	}
	return nil
}

// Resolve maps a plain numeric reply to the matching option.
func (r *RedisStore) Resolve(ctx context.Context, identity string, reply string) (CommandOption, bool, error) {
	data, err := r.client.Get(ctx, optionsKeyPrefix+identity).Bytes()
	if errors.Is(err, redis.Nil) {
		return CommandOption{}, false, nil
	}
	if err != nil {
		return CommandOption{}, false, fmt.Errorf("session: load options: %w", err)
	}

	var opts []CommandOption
	if err := json.Unmarshal(data, &opts); err != nil {
		return CommandOption{}, false, fmt.Errorf("session: decode options: %w", err)
	}
	reply = strings.TrimSpace(reply)
	for _, opt := range opts {
		if opt.ID == reply {
			return opt, true, nil
		}
	}
	return CommandOption{}, false, nil
}

func (r *RedisStore) load(ctx context.Context, identity string) (*BookingContext, error) {
	data, err := r.client.Get(ctx, sessionKeyPrefix+identity).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: load context: %w", err)
	}
	var sess BookingContext
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("session: decode context: %w", err)
	}
	return &sess, nil
}

func (r *RedisStore) save(ctx context.Context, identity string, sess *BookingContext) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("session: marshal context: %w", err)
	}
	if err := r.client.Set(ctx, sessionKeyPrefix+identity, data, 0).Err(); err != nil {
		return fmt.Errorf("session: store context: %w", err)
	}
	return nil
}
