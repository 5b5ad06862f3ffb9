package repository

import (
	"context"
	"encoding/json"
	"time"

	bolt "github.com/boltdb/bolt"

	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

var (
	attendBucket    = []byte("attendances")
	pendingBucket   = []byte("pending")
	paymentBucket   = []byte("payments")
	confirmedBucket = []byte("confirmed")
)

// boltEntry wraps every stored value with its own deadline.  Bolt has no
// TTLs, so expiry is enforced on read and by Sweep.
type boltEntry struct {
	Value     json.RawMessage `json:"value"`
	ExpiresAt time.Time       `json:"expiresAt"`
}

func (e boltEntry) expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// BoltPendingStore is the single-file fallback used when Redis is not
// reachable at startup.  Bolt serialises write transactions, which makes
// the get-and-delete in Claim atomic across goroutines.
type BoltPendingStore struct {
	db    *bolt.DB
	grace time.Duration
	now   func() time.Time
}

// OpenBoltPendingStore opens (or creates) the Bolt file at path and ensures
// the buckets exist.
func OpenBoltPendingStore(path string, grace time.Duration) (*BoltPendingStore, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, err
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{attendBucket, pendingBucket, paymentBucket, confirmedBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &BoltPendingStore{db: db, grace: grace, now: time.Now}, nil
}

// Close releases the database file lock.
func (s *BoltPendingStore) Close() error { return s.db.Close() }

func (s *BoltPendingStore) put(tx *bolt.Tx, bucket []byte, key string, v any, expiresAt time.Time) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	b, err := json.Marshal(boltEntry{Value: raw, ExpiresAt: expiresAt})
	if err != nil {
		return err
	}
	return tx.Bucket(bucket).Put([]byte(key), b)
}

// get returns the live entry under key, or nil when missing or expired.
func (s *BoltPendingStore) get(tx *bolt.Tx, bucket []byte, key string) (*boltEntry, error) {
	raw := tx.Bucket(bucket).Get([]byte(key))
	if raw == nil {
		return nil, nil
	}
	var e boltEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, err
	}
	if e.expired(s.now()) {
		return nil, nil
	}
	return &e, nil
}

func (s *BoltPendingStore) SaveAttendance(_ context.Context, rec model.AttendanceRecord, ttl time.Duration) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.put(tx, attendBucket, rec.Protocol, rec, s.now().Add(ttl))
	})
}

func (s *BoltPendingStore) Attendance(_ context.Context, protocol string) (model.AttendanceRecord, error) {
	var rec model.AttendanceRecord
	err := s.db.View(func(tx *bolt.Tx) error {
		e, err := s.get(tx, attendBucket, protocol)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrAttendanceNotFound
		}
		return json.Unmarshal(e.Value, &rec)
	})
	return rec, err
}

func (s *BoltPendingStore) Track(_ context.Context, p model.PendingPayment) error {
	deadline := p.ExpiresAt.Add(s.grace)
	return s.db.Update(func(tx *bolt.Tx) error {
		if err := s.put(tx, pendingBucket, p.PaymentID, p, deadline); err != nil {
			return err
		}
		return s.put(tx, paymentBucket, p.Protocol, p.PaymentID, deadline)
	})
}

func (s *BoltPendingStore) PaymentFor(_ context.Context, protocol string) (string, bool, error) {
	var id string
	err := s.db.View(func(tx *bolt.Tx) error {
		e, err := s.get(tx, paymentBucket, protocol)
		if err != nil || e == nil {
			return err
		}
		return json.Unmarshal(e.Value, &id)
	})
	if err != nil {
		return "", false, err
	}
	return id, id != "", nil
}

// Claim deletes the pending entry inside one write transaction and returns
// what it held.  Expired entries are deleted but not returned.
func (s *BoltPendingStore) Claim(_ context.Context, paymentID string) (model.PendingPayment, bool, error) {
	var p model.PendingPayment
	var ok bool
	err := s.db.Update(func(tx *bolt.Tx) error {
		var err error
		p, ok, err = s.claim(tx, paymentID)
		return err
	})
	if err != nil {
		return model.PendingPayment{}, false, err
	}
	return p, ok, nil
}

func (s *BoltPendingStore) claim(tx *bolt.Tx, paymentID string) (model.PendingPayment, bool, error) {
	var p model.PendingPayment
	e, err := s.get(tx, pendingBucket, paymentID)
	if err != nil {
		return p, false, err
	}
	if err := tx.Bucket(pendingBucket).Delete([]byte(paymentID)); err != nil {
		return p, false, err
	}
	if e == nil {
		return p, false, nil
	}
	if err := json.Unmarshal(e.Value, &p); err != nil {
		return p, false, err
	}
	return p, true, nil
}

func (s *BoltPendingStore) ClaimProtocol(_ context.Context, protocol string, ttl time.Duration) (bool, error) {
	claimed := false
	err := s.db.Update(func(tx *bolt.Tx) error {
		e, err := s.get(tx, confirmedBucket, protocol)
		if err != nil || e != nil {
			return err
		}
		claimed = true
		return s.put(tx, confirmedBucket, protocol, s.now().UTC(), s.now().Add(ttl))
	})
	return claimed, err
}

func (s *BoltPendingStore) Forget(_ context.Context, paymentID string) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		p, ok, err := s.claim(tx, paymentID)
		if err != nil || !ok {
			return err
		}
		return tx.Bucket(paymentBucket).Delete([]byte(p.Protocol))
	})
}

// Sweep deletes every expired entry and returns how many were removed.
func (s *BoltPendingStore) Sweep(_ context.Context) (int, error) {
	removed := 0
	now := s.now()
	err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{attendBucket, pendingBucket, paymentBucket, confirmedBucket} {
			b := tx.Bucket(name)
			var stale [][]byte
			err := b.ForEach(func(k, v []byte) error {
				var e boltEntry
				if err := json.Unmarshal(v, &e); err != nil || e.expired(now) {
					stale = append(stale, append([]byte(nil), k...))
				}
				return nil
			})
			if err != nil {
				return err
			}
			for _, k := range stale {
				if err := b.Delete(k); err != nil {
					return err
				}
			}
			removed += len(stale)
		}
		return nil
	})
	return removed, err
}
