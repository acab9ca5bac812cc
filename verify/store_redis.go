package verify

import (
	"bytes"
	"context"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/redis/go-redis/v9"
)

const recordVersionV1 = 1

// consumeLua atomically performs GET→validate→DEL/SET on a record.
// KEYS[1] = record key
// ARGV[1] = provided hash (32 bytes)
// ARGV[2] = max attempts (int string)
// ARGV[3] = current unix timestamp (int string)
//
// Returns the record bytes on success, or an error string:
// "not_found", "attempts_exceeded", "mismatch".
var consumeLua = redis.NewScript(`
local data = redis.call('GET', KEYS[1])
if not data then
  return {err='not_found'}
end

local provided = ARGV[1]
local maxAttempts = tonumber(ARGV[2])
local nowUnix = tonumber(ARGV[3])

-- Record layout: version(1) attempts(2 big-endian) expiresAt(8 big-endian) hash(32)
local version = string.byte(data, 1)
if version ~= 1 then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

local attempts = string.byte(data, 2) * 256 + string.byte(data, 3)

local expiresAt = 0
for i = 4, 11 do
  expiresAt = expiresAt * 256 + string.byte(data, i)
end
if nowUnix > expiresAt then
  redis.call('DEL', KEYS[1])
  return {err='not_found'}
end

if attempts >= maxAttempts then
  return {err='attempts_exceeded'}
end

local stored = string.sub(data, 12, 43)
if stored ~= provided then
  attempts = attempts + 1
  local newData = string.sub(data, 1, 1) .. string.char(math.floor(attempts / 256), attempts % 256) .. string.sub(data, 4)
  local ttlMs = redis.call('PTTL', KEYS[1])
  if ttlMs <= 0 then
    redis.call('DEL', KEYS[1])
    return {err='not_found'}
  end
  redis.call('SET', KEYS[1], newData, 'PX', ttlMs)
  return {err='mismatch'}
end

redis.call('DEL', KEYS[1])
return data
`)

// RedisStore keeps verification records in Redis with a TTL matching the
// record expiry. The consume path runs server-side so concurrent checks
// against the same record serialize on the store.
type RedisStore struct {
	redis  redis.UniversalClient
	prefix string
}

// NewRedisStore returns a RedisStore. An empty prefix defaults to "vrf".
func NewRedisStore(client redis.UniversalClient, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "vrf"
	}
	return &RedisStore{redis: client, prefix: prefix}
}

func (s *RedisStore) key(target, purpose string) string {
	return s.prefix + ":" + purpose + ":" + target
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, target, purpose string, rec Record, ttl time.Duration) error {
	encoded, err := encodeRecord(&rec)
	if err != nil {
		return err
	}
	if err := s.redis.Set(ctx, s.key(target, purpose), encoded, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Consume implements Store.
func (s *RedisStore) Consume(ctx context.Context, target, purpose string, providedHash [32]byte, maxAttempts int, now int64) error {
	result, err := consumeLua.Run(ctx, s.redis,
		[]string{s.key(target, purpose)},
		string(providedHash[:]),
		maxAttempts,
		now,
	).Result()

	if err != nil {
		switch err.Error() {
		case "not_found":
			return ErrNotFound
		case "attempts_exceeded":
			return ErrAttemptsExceeded
		case "mismatch":
			return ErrMismatch
		default:
			return fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	data, ok := result.(string)
	if !ok {
		return fmt.Errorf("%w: unexpected lua result type", ErrUnavailable)
	}
	rec, decErr := decodeRecord([]byte(data))
	if decErr != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, decErr)
	}

	// Defense-in-depth re-check in Go: Lua already compared, but Lua
	// string comparison is not constant-time.
	if !hashesEqual(rec.CodeHash, providedHash) {
		return ErrMismatch
	}
	return nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, target, purpose string) error {
	if err := s.redis.Del(ctx, s.key(target, purpose)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

func hashesEqual(a, b [32]byte) bool {
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

func encodeRecord(rec *Record) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte(recordVersionV1)
	if err := binary.Write(&buf, binary.BigEndian, rec.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt); err != nil {
		return nil, err
	}
	buf.Write(rec.CodeHash[:])
	return buf.Bytes(), nil
}

func decodeRecord(data []byte) (*Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordVersionV1 {
		return nil, errors.New("invalid verification record version")
	}

	rec := &Record{}
	if err := binary.Read(reader, binary.BigEndian, &rec.Attempts); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &rec.ExpiresAt); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(reader, rec.CodeHash[:]); err != nil {
		return nil, err
	}
	return rec, nil
}
