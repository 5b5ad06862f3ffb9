package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// RedisPendingStore keeps the checkout correlation state in Redis.  Every
// key carries a TTL so entries of payments that never resolve disappear on
// their own:
//
//	<prefix>:attend:<protocol>    attendance JSON, TTL = attendance window
//	<prefix>:pending:<paymentID>  pending payment JSON, TTL = expiresAt + grace
//	<prefix>:payment:<protocol>   paymentID, same TTL as the pending entry
//	<prefix>:confirmed:<protocol> claim marker, set once with SETNX
type RedisPendingStore struct {
	rdb    *redis.Client
	prefix string
	grace  time.Duration
}

// NewRedisPendingStore returns a store using rdb.  grace extends pending
// entries past the payment deadline so late webhooks still find them.
func NewRedisPendingStore(rdb *redis.Client, prefix string, grace time.Duration) *RedisPendingStore {
	if prefix == "" {
		prefix = "checkout"
	}
	return &RedisPendingStore{rdb: rdb, prefix: prefix, grace: grace}
}

func (s *RedisPendingStore) key(kind, id string) string {
	return s.prefix + ":" + kind + ":" + id
}

// SaveAttendance stores an attendance so a later purchase can be priced from
// the reserved quantity instead of a client-supplied amount.
func (s *RedisPendingStore) SaveAttendance(ctx context.Context, rec model.AttendanceRecord, ttl time.Duration) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, s.key("attend", rec.Protocol), b, ttl).Err()
}

// Attendance loads a stored attendance by protocol.
func (s *RedisPendingStore) Attendance(ctx context.Context, protocol string) (model.AttendanceRecord, error) {
	b, err := s.rdb.Get(ctx, s.key("attend", protocol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return model.AttendanceRecord{}, ErrAttendanceNotFound
	}
	if err != nil {
		return model.AttendanceRecord{}, err
	}
	var rec model.AttendanceRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return model.AttendanceRecord{}, err
	}
	return rec, nil
}

// Track records the pending payment until its deadline plus grace, along
// with the protocol -> paymentID index used by PaymentFor.
func (s *RedisPendingStore) Track(ctx context.Context, p model.PendingPayment) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	ttl := time.Until(p.ExpiresAt) + s.grace
	if ttl <= 0 {
		ttl = s.grace
	}
	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, s.key("pending", p.PaymentID), b, ttl)
	pipe.Set(ctx, s.key("payment", p.Protocol), p.PaymentID, ttl)
	_, err = pipe.Exec(ctx)
	return err
}

// PaymentFor returns the payment created for protocol, if any.  The index
// outlives a Claim so repeated confirm requests still resolve.
func (s *RedisPendingStore) PaymentFor(ctx context.Context, protocol string) (string, bool, error) {
	id, err := s.rdb.Get(ctx, s.key("payment", protocol)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return id, true, nil
}

// Claim atomically removes the pending entry and returns it.  Only one of
// any number of concurrent callers gets ok=true.
func (s *RedisPendingStore) Claim(ctx context.Context, paymentID string) (model.PendingPayment, bool, error) {
	var p model.PendingPayment
	b, err := s.rdb.GetDel(ctx, s.key("pending", paymentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return p, false, nil
	}
	if err != nil {
		return p, false, err
	}
	if err := json.Unmarshal(b, &p); err != nil {
		return p, false, err
	}
	return p, true, nil
}

// ClaimProtocol marks protocol as being confirmed.  It returns false when a
// previous caller already claimed it.
func (s *RedisPendingStore) ClaimProtocol(ctx context.Context, protocol string, ttl time.Duration) (bool, error) {
	return s.rdb.SetNX(ctx, s.key("confirmed", protocol), time.Now().UTC().Format(time.RFC3339), ttl).Result()
}

// Forget drops the pending entry of a payment that will never be confirmed,
// together with its protocol index.
func (s *RedisPendingStore) Forget(ctx context.Context, paymentID string) error {
	p, ok, err := s.Claim(ctx, paymentID)
	if err != nil || !ok {
		return err
	}
	return s.rdb.Del(ctx, s.key("payment", p.Protocol)).Err()
}
