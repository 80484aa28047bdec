package redis

import (
	"context"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/procurelab/tendermatch/internal/db"
)

// HSet sets hash fields.
func (s *Store) HSet(ctx context.Context, key string, fields map[string]string) error {
	cmd := s.b().Hset().Key(key).FieldValue()
	for k, v := range fields {
		cmd = cmd.FieldValue(k, v)
	}
	if err := s.do(ctx, cmd.Build()).Error(); err != nil {
		return &db.Error{Op: db.OpHSet, Err: err}
	}
	return nil
}

// hsetIfNewerScript compares timestamps as decimal strings (length first,
// then lexicographic): UnixNano values exceed the 2^53 range where Lua
// number comparison stays exact. ARGV[1] is the incoming timestamp, ARGV[2]
// the timestamp field name, the rest field/value pairs.
var hsetIfNewerScript = rueidis.NewLuaScript(`
local new = ARGV[1]
local prev = redis.call('HGET', KEYS[1], ARGV[2])
if prev and (#prev > #new or (#prev == #new and prev > new)) then
	return 0
end
redis.call('DEL', KEYS[1])
for i = 3, #ARGV, 2 do
	redis.call('HSET', KEYS[1], ARGV[i], ARGV[i+1])
end
return 1
`)

// HSetIfNewer replaces the hash at key unless a newer write already landed.
// The check and write run in one script, so concurrent upserts cannot
// interleave between them.
func (s *Store) HSetIfNewer(ctx context.Context, key string, fields map[string]string, tsField string, ts int64) (bool, error) {
	args := make([]string, 0, 2+2*len(fields))
	args = append(args, strconv.FormatInt(ts, 10), tsField)
	for k, v := range fields {
		args = append(args, k, v)
	}

	written, err := hsetIfNewerScript.Exec(ctx, s.client, []string{key}, args).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpHSetIfNewer, Err: err}
	}
	return written == 1, nil
}

// HGetAll returns all fields of a hash. A missing key yields an empty map.
func (s *Store) HGetAll(ctx context.Context, key string) (map[string]string, error) {
	cmd := s.b().Hgetall().Key(key).Build()
	m, err := s.do(ctx, cmd).AsStrMap()
	if err != nil {
		return nil, &db.Error{Op: db.OpHGetAll, Err: err}
	}
	return m, nil
}

// Del deletes a key. Deleting a nonexistent key is not an error.
func (s *Store) Del(ctx context.Context, key string) error {
	cmd := s.b().Del().Key(key).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		return &db.Error{Op: db.OpDel, Err: err}
	}
	return nil
}

// Exists checks if a key exists.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	cmd := s.b().Exists().Key(key).Build()
	count, err := s.do(ctx, cmd).AsInt64()
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return count > 0, nil
}
