package buyer

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/iliyamo/pix-raffle-checkout/internal/model"
)

// SessionKey is the fixed key the in-flight payment is stored under.
const SessionKey = "pixSession"

// ClientSession is the in-flight payment a restarted client resumes.
type ClientSession struct {
	ID        string             `json:"id"`
	QRImage   string             `json:"qrImage"`
	QRCode    string             `json:"qrCode"`
	Status    model.ChargeStatus `json:"status"`
	ExpiresAt time.Time          `json:"expiresAt"`
	Protocol  string             `json:"protocol,omitempty"`
}

// Expired reports whether the payment window has closed at now.
func (s ClientSession) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// SessionStore persists at most one ClientSession.
type SessionStore interface {
	Load() (ClientSession, bool, error)
	Save(ClientSession) error
	Clear() error
}

// FileStore keeps a small JSON object of key -> value in a file, the way a
// browser keeps local storage, and stores the session under SessionKey.
// Other keys in the file are preserved.
type FileStore struct {
	path string
	mu   sync.Mutex
}

func NewFileStore(path string) *FileStore { return &FileStore{path: path} }

func (f *FileStore) read() (map[string]json.RawMessage, error) {
	b, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]json.RawMessage{}, nil
	}
	if err != nil {
		return nil, err
	}
	m := map[string]json.RawMessage{}
	if len(b) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(b, &m); err != nil {
		// a corrupt file is treated as empty storage
		return map[string]json.RawMessage{}, nil
	}
	return m, nil
}

func (f *FileStore) write(m map[string]json.RawMessage) error {
	b, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(f.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

// Load returns the stored session.  An unreadable entry counts as absent.
func (f *FileStore) Load() (ClientSession, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return ClientSession{}, false, err
	}
	raw, ok := m[SessionKey]
	if !ok {
		return ClientSession{}, false, nil
	}
	var s ClientSession
	if err := json.Unmarshal(raw, &s); err != nil || s.ID == "" {
		return ClientSession{}, false, nil
	}
	return s, true, nil
}

func (f *FileStore) Save(s ClientSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}
	m[SessionKey] = raw
	return f.write(m)
}

func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := m[SessionKey]; !ok {
		return nil
	}
	delete(m, SessionKey)
	return f.write(m)
}
