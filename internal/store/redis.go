package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"puzzle_webapp/internal/domain"

	redis "github.com/redis/go-redis/v9"
)

// Key layout:
//
//	session:{id}            session JSON
//	sessions:seen           ZSET member=id score=last heartbeat (unix ms)
//	puzzle:{id}:{game}      puzzle state JSON
//	session:{id}:games      SET of game types with state
//
// Every key carries an expiry backstop so a crashed reaper cannot leak
// state forever. Touch refreshes the backstop of the session's puzzles too.
const seenKey = "sessions:seen"

func sessionKey(id string) string      { return "session:" + id }
func sessionGamesKey(id string) string { return "session:" + id + ":games" }
func puzzleKey(k PuzzleKey) string     { return "puzzle:" + k.SessionID + ":" + string(k.Game) }

func parsePuzzleKey(raw string) (PuzzleKey, bool) {
	rest, ok := strings.CutPrefix(raw, "puzzle:")
	if !ok {
		return PuzzleKey{}, false
	}
	i := strings.LastIndex(rest, ":")
	if i <= 0 || i == len(rest)-1 {
		return PuzzleKey{}, false
	}
	return PuzzleKey{SessionID: rest[:i], Game: domain.GameType(rest[i+1:])}, true
}

type RedisSessionStore struct {
	rdb      *redis.Client
	backstop time.Duration
}

func NewRedisSessionStore(rdb *redis.Client, backstop time.Duration) *RedisSessionStore {
	return &RedisSessionStore{rdb: rdb, backstop: backstop}
}

func (s *RedisSessionStore) Create(ctx context.Context, sess *domain.Session) error {
	b, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, sessionKey(sess.ID), b, s.backstop)
		pipe.ZAdd(ctx, seenKey, redis.Z{Score: float64(sess.LastHeartbeat.UnixMilli()), Member: sess.ID})
		return nil
	})
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*domain.Session, error) {
	b, err := s.rdb.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	var sess domain.Session
	if err := json.Unmarshal(b, &sess); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Touch(ctx context.Context, id string, now, notBefore time.Time) (bool, error) {
	key := sessionKey(id)
	touched := false

	err := s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		b, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return nil
		}
		if err != nil {
			return err
		}
		var sess domain.Session
		if err := json.Unmarshal(b, &sess); err != nil {
			return err
		}
		if !sess.LastHeartbeat.After(notBefore) {
			return nil
		}
		games, err := tx.SMembers(ctx, sessionGamesKey(id)).Result()
		if err != nil {
			return err
		}

		sess.LastHeartbeat = now
		out, err := json.Marshal(sess)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, out, s.backstop)
			pipe.ZAdd(ctx, seenKey, redis.Z{Score: float64(now.UnixMilli()), Member: id})
			pipe.Expire(ctx, sessionGamesKey(id), s.backstop)
			for _, g := range games {
				pipe.Expire(ctx, puzzleKey(PuzzleKey{SessionID: id, Game: domain.GameType(g)}), s.backstop)
			}
			return nil
		})
		if err == nil {
			touched = true
		}
		return err
	}, key)
	if err != nil {
		return false, fmt.Errorf("touch session: %w", err)
	}
	return touched, nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, sessionKey(id))
		pipe.ZRem(ctx, seenKey, id)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *RedisSessionStore) Expired(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := s.rdb.ZRangeByScore(ctx, seenKey, &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(cutoff.UnixMilli(), 10),
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("expired sessions: %w", err)
	}
	return ids, nil
}

func (s *RedisSessionStore) Count(ctx context.Context) (int, error) {
	n, err := s.rdb.ZCard(ctx, seenKey).Result()
	if err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return int(n), nil
}

type RedisPuzzleStore struct {
	rdb      *redis.Client
	backstop time.Duration
}

func NewRedisPuzzleStore(rdb *redis.Client, backstop time.Duration) *RedisPuzzleStore {
	return &RedisPuzzleStore{rdb: rdb, backstop: backstop}
}

func (s *RedisPuzzleStore) Get(ctx context.Context, key PuzzleKey) (*domain.PuzzleState, error) {
	b, err := s.rdb.Get(ctx, puzzleKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrPuzzleNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get puzzle %s: %w", key, err)
	}
	var st domain.PuzzleState
	if err := json.Unmarshal(b, &st); err != nil {
		return nil, fmt.Errorf("decode puzzle %s: %w", key, err)
	}
	return &st, nil
}

func (s *RedisPuzzleStore) Put(ctx context.Context, key PuzzleKey, st *domain.PuzzleState) error {
	b, err := json.Marshal(st)
	if err != nil {
		return err
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, puzzleKey(key), b, s.backstop)
		pipe.SAdd(ctx, sessionGamesKey(key.SessionID), string(key.Game))
		pipe.Expire(ctx, sessionGamesKey(key.SessionID), s.backstop)
		return nil
	})
	if err != nil {
		return fmt.Errorf("put puzzle %s: %w", key, err)
	}
	return nil
}

func (s *RedisPuzzleStore) Delete(ctx context.Context, key PuzzleKey) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, puzzleKey(key))
		pipe.SRem(ctx, sessionGamesKey(key.SessionID), string(key.Game))
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete puzzle %s: %w", key, err)
	}
	return nil
}

func (s *RedisPuzzleStore) Games(ctx context.Context, sessionID string) ([]domain.GameType, error) {
	members, err := s.rdb.SMembers(ctx, sessionGamesKey(sessionID)).Result()
	if err != nil {
		return nil, fmt.Errorf("session games: %w", err)
	}
	out := make([]domain.GameType, 0, len(members))
	for _, m := range members {
		out = append(out, domain.GameType(m))
	}
	return out, nil
}

func (s *RedisPuzzleStore) Keys(ctx context.Context) ([]PuzzleKey, error) {
	var out []PuzzleKey
	iter := s.rdb.Scan(ctx, 0, "puzzle:*", 200).Iterator()
	for iter.Next(ctx) {
		if k, ok := parsePuzzleKey(iter.Val()); ok {
			out = append(out, k)
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("scan puzzles: %w", err)
	}
	return out, nil
}
