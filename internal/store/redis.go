package store

import (
	"encoding/hex"
	"strconv"

	"github.com/go-redis/redis"
	"github.com/pkg/errors"
)

const (
	fieldSession   = "session"
	fieldDevNonce  = "devNonce"
	fieldJoinNonce = "joinNonce"
)

// hashClient is the part of *redis.Client the store uses.
type hashClient interface {
	HGetAll(key string) *redis.StringStringMapCmd
	HMSet(key string, fields map[string]interface{}) *redis.StatusCmd
}

// Redis keeps one hash per device under prefix + hex EUI.
type Redis struct {
	db     hashClient
	prefix string
}

func NewRedis(address, password string, db int, prefix string) *Redis {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return &Redis{db: client, prefix: prefix}
}

func (r *Redis) key(devEUI [8]byte) string {
	return r.prefix + hex.EncodeToString(devEUI[:])
}

func (r *Redis) Load(devEUI [8]byte) (Snapshot, error) {
	var s Snapshot
	fields, err := r.db.HGetAll(r.key(devEUI)).Result()
	if err == redis.Nil {
		return s, nil
	}
	if err != nil {
		return s, errors.Wrap(err, "redis load")
	}

	if v, ok := fields[fieldSession]; ok {
		s.Session, err = hex.DecodeString(v)
		if err != nil {
			return s, errors.Wrap(err, "redis load session")
		}
	}
	s.DevNonce, err = parseNonce(fields, fieldDevNonce)
	if err != nil {
		return s, err
	}
	s.JoinNonce, err = parseNonce(fields, fieldJoinNonce)
	return s, err
}

func parseNonce(fields map[string]string, name string) (uint32, error) {
	v, ok := fields[name]
	if !ok {
		return 0, nil
	}
	n, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		return 0, errors.Wrapf(err, "redis load %s", name)
	}
	return uint32(n), nil
}

func (r *Redis) Save(devEUI [8]byte, s Snapshot) error {
	err := r.db.HMSet(r.key(devEUI), map[string]interface{}{
		fieldSession:   hex.EncodeToString(s.Session),
		fieldDevNonce:  strconv.FormatUint(uint64(s.DevNonce), 10),
		fieldJoinNonce: strconv.FormatUint(uint64(s.JoinNonce), 10),
	}).Err()
	return errors.Wrap(err, "redis save")
}

// Close releases the client connection pool.
func (r *Redis) Close() error {
	if c, ok := r.db.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}
