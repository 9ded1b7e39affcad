// Package secure provides zeroizing byte buffers for key material and
// decrypted plaintext, following the teacher's secureBytes discipline
// (progressdb-ProgressDB/kms/pkg/kms/security.go) generalized per
// spec.md §9 to cover plaintexts returned from read_secret as well as
// keys.
package secure

import "sync"

// Bytes holds sensitive data behind a copy-in/copy-out boundary so that
// callers cannot retain a live reference into the internal buffer. Clear
// zeroizes the buffer; String/GoString never print the contents.
type Bytes struct {
	mu   sync.RWMutex
	data []byte
}

// New copies b into a new Bytes. The caller retains ownership of b.
func New(b []byte) *Bytes {
	cp := make([]byte, len(b))
	copy(cp, b)
	return &Bytes{data: cp}
}

// Data returns a copy of the held bytes. Callers that need to zeroize
// their own copy must do so themselves.
func (s *Bytes) Data() []byte {
	if s == nil {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]byte, len(s.data))
	copy(cp, s.data)
	return cp
}

// Len reports the length without copying.
func (s *Bytes) Len() int {
	if s == nil {
		return 0
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

// Clear zeroizes the held buffer in place.
func (s *Bytes) Clear() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	Wipe(s.data)
	s.data = nil
}

func (s *Bytes) String() string   { return "<redacted>" }
func (s *Bytes) GoString() string { return "secure.Bytes{<redacted>}" }

// Wipe zeroizes a byte slice in place. Safe to call on nil/empty slices.
func Wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
