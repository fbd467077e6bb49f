// Package redisstore keeps attendance drafts in Redis so several console instances share them.
package redisstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/attendance"
)

const keyPrefix = "darasa:draft:"

// Open connects to the configured Redis server; it returns nil when no address is set.
func Open(ctx context.Context, conf *core.Config) (*redis.Client, error) {
	if conf.Redis.Addr == "" {
		return nil, nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.Redis.Addr,
		Password: conf.Redis.Password,
		DB:       conf.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrapf(err, "pinging redis at %s", conf.Redis.Addr)
	}
	return rdb, nil
}

var _ attendance.DraftStore = (*draftStore)(nil)

type draftStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewDraftStore stores sheets as JSON; a draft expires ttl after its last Put (0 keeps it forever).
func NewDraftStore(rdb *redis.Client, ttl time.Duration) *draftStore {
	return &draftStore{rdb: rdb, ttl: ttl}
}

func draftKey(key attendance.DraftKey) string { return keyPrefix + key.String() }

func (st *draftStore) Get(ctx context.Context, key attendance.DraftKey) (*attendance.Sheet, error) {
	data, err := st.rdb.Get(ctx, draftKey(key)).Bytes()
	if err == redis.Nil {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading draft")
	}
	var sheet attendance.Sheet
	if err := json.Unmarshal(data, &sheet); err != nil {
		return nil, errors.Wrap(err, "decoding draft")
	}
	return &sheet, nil
}

func (st *draftStore) Put(ctx context.Context, key attendance.DraftKey, sheet *attendance.Sheet) error {
	data, err := json.Marshal(sheet)
	if err != nil {
		return errors.Wrap(err, "encoding draft")
	}
	return errors.Wrap(st.rdb.Set(ctx, draftKey(key), data, st.ttl).Err(), "writing draft")
}

func (st *draftStore) Delete(ctx context.Context, key attendance.DraftKey) error {
	return errors.Wrap(st.rdb.Del(ctx, draftKey(key)).Err(), "deleting draft")
}
