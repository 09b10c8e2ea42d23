package elevation

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const elevationRecordVersion1 = 0x01

var (
	// ErrStoreUnavailable wraps transport failures talking to Redis.
	ErrStoreUnavailable = errors.New("elevation: store unavailable")
	// errRetriesExhausted is returned when optimistic transactions keep
	// colliding; with per-user keys this effectively never happens.
	errRetriesExhausted = errors.New("elevation: concurrent update retries exhausted")
)

// RedisStore persists sessions in Redis, one key per user, so elevation
// survives process restarts and is visible to every node. Keys carry a TTL
// matching the session deadline; Redis expiry is a janitor, not the
// authority, since readers compare ExpiresAt themselves.
type RedisStore struct {
	redis  *redis.Client
	prefix string
}

// NewRedisStore returns a store writing under prefix (for example "gel:").
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(userID string) string {
	return s.prefix + userID
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, userID string) (Session, bool, error) {
	data, err := s.redis.Get(ctx, s.key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Session{}, false, nil
	}
	if err != nil {
		return Session{}, false, errors.Join(ErrStoreUnavailable, err)
	}
	sess, err := decodeSession(userID, data)
	if err != nil {
		return Session{}, false, err
	}
	return sess, true, nil
}

// Update implements Store using an optimistic WATCH transaction: the key is
// watched, the current record read and handed to fn, and the replacement
// written in a MULTI/EXEC that fails if the key changed in between.
func (s *RedisStore) Update(ctx context.Context, userID string, fn func(cur *Session) (*Session, error)) (*Session, error) {
	const maxRetries = 4
	key := s.key(userID)

	for i := 0; i < maxRetries; i++ {
		var result *Session

		err := s.redis.Watch(ctx, func(tx *redis.Tx) error {
			var cur *Session
			data, err := tx.Get(ctx, key).Bytes()
			switch {
			case errors.Is(err, redis.Nil):
			case err != nil:
				return errors.Join(ErrStoreUnavailable, err)
			default:
				sess, err := decodeSession(userID, data)
				if err != nil {
					return err
				}
				cur = &sess
			}

			next, err := fn(cur)
			if err != nil {
				return err
			}
			result = next

			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				if next == nil {
					pipe.Del(ctx, key)
					return nil
				}
				encoded, err := encodeSession(next)
				if err != nil {
					return err
				}
				ttl := time.Until(next.ExpiresAt)
				if ttl <= 0 {
					ttl = time.Second
				}
				pipe.Set(ctx, key, encoded, ttl)
				return nil
			})
			return err
		}, key)

		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return result, nil
	}
	return nil, errRetriesExhausted
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, userID string) error {
	if err := s.redis.Del(ctx, s.key(userID)).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}

func encodeSession(sess *Session) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(elevationRecordVersion1)

	if err := binary.Write(&buf, binary.BigEndian, sess.GrantedAt.UnixNano()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, sess.ExpiresAt.UnixNano()); err != nil {
		return nil, err
	}

	if len(sess.Reason) > 65535 {
		return nil, errors.New("elevation: reason length exceeded")
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(sess.Reason))); err != nil {
		return nil, err
	}
	buf.WriteString(sess.Reason)

	return buf.Bytes(), nil
}

func decodeSession(userID string, data []byte) (Session, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return Session{}, err
	}
	if version != elevationRecordVersion1 {
		return Session{}, errors.New("elevation: invalid record version")
	}

	var grantedAt, expiresAt int64
	if err := binary.Read(reader, binary.BigEndian, &grantedAt); err != nil {
		return Session{}, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresAt); err != nil {
		return Session{}, err
	}

	var reasonLen uint16
	if err := binary.Read(reader, binary.BigEndian, &reasonLen); err != nil {
		return Session{}, err
	}
	reason := make([]byte, reasonLen)
	if _, err := io.ReadFull(reader, reason); err != nil {
		return Session{}, err
	}

	return Session{
		UserID:    userID,
		Reason:    string(reason),
		GrantedAt: time.Unix(0, grantedAt),
		ExpiresAt: time.Unix(0, expiresAt),
	}, nil
}
