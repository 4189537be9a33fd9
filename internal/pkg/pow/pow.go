/*
Package pow gates account registration behind a small proof-of-work puzzle.

A client fetches a nonce, searches for a counter such that sha256(nonce+counter) starts with
`difficulty` hex zeros, and exchanges the solution for a short-lived, single-use proof token
that it attaches to the registration request.
*/
package pow

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"chatwave/internal/pkg/randx"
)

const (
	// TokenHeaderKey is the header carrying the proof token.
	TokenHeaderKey = "X-PoW-Token"

	// ProofTokenDuration is how long an issued proof token stays valid.
	ProofTokenDuration = 30 * time.Second

	// NonceExpiryDuration is how long a challenge nonce stays valid.
	NonceExpiryDuration = 5 * time.Minute

	nonceLength = 24
)

var (
	ErrNonceInvalid    = errors.New("nonce expired or invalid")
	ErrProofTooWeak    = errors.New("proof does not meet difficulty requirement")
	ErrNonceConsumed   = errors.New("nonce consumed by concurrent request")
	ErrNonceGeneration = errors.New("failed to generate nonce")
)

// Manager tracks outstanding nonces and issued proof tokens. Safe for concurrent use.
type Manager struct {
	difficulty int

	// nonces and tokens map a value to its expiry.
	nonces map[string]time.Time
	tokens map[string]time.Time

	mu sync.Mutex

	now func() time.Time

	stop chan struct{}
	once sync.Once
}

// NewManager creates a Manager and starts its expiry loop.
// A difficulty of zero or less disables the gate: Enabled reports false.
func NewManager(difficulty int) *Manager {
	m := &Manager{
		difficulty: difficulty,
		nonces:     make(map[string]time.Time),
		tokens:     make(map[string]time.Time),
		now:        time.Now,
		stop:       make(chan struct{}),
	}

	go m.cleanupExpiredEntries()

	return m
}

// Enabled reports whether registration must present a proof token.
func (m *Manager) Enabled() bool {
	return m.difficulty > 0
}

// Difficulty returns the number of leading hex zeros required.
func (m *Manager) Difficulty() int {
	return m.difficulty
}

// GenerateNonce issues a new challenge nonce.
func (m *Manager) GenerateNonce() (string, error) {
	nonce, err := randx.Base62(nonceLength)
	if err != nil {
		return "", errors.Join(ErrNonceGeneration, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.nonces[nonce] = m.now().Add(NonceExpiryDuration)
	return nonce, nil
}

// Solves reports whether counter solves nonce at difficulty.
func Solves(nonce, counter string, difficulty int) bool {
	hash := sha256.Sum256([]byte(nonce + counter))
	return strings.HasPrefix(hex.EncodeToString(hash[:]), strings.Repeat("0", difficulty))
}

// ValidateProof checks a solution and, on success, consumes the nonce and returns a proof token.
func (m *Manager) ValidateProof(nonce, counter string) (string, error) {
	m.mu.Lock()
	expiry, ok := m.nonces[nonce]
	m.mu.Unlock()

	if !ok || m.now().After(expiry) {
		return "", ErrNonceInvalid
	}

	if !Solves(nonce, counter, m.difficulty) {
		return "", ErrProofTooWeak
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, stillExists := m.nonces[nonce]; !stillExists {
		return "", ErrNonceConsumed
	}
	delete(m.nonces, nonce)

	token := randx.ID()
	m.tokens[token] = m.now().Add(ProofTokenDuration)
	return token, nil
}

// ConsumeProofToken reports whether r carries a valid proof token (header or `pow_token`
// query parameter) and invalidates it.
func (m *Manager) ConsumeProofToken(r *http.Request) bool {
	token := r.Header.Get(TokenHeaderKey)
	if token == "" {
		token = r.URL.Query().Get("pow_token")
	}

	if token == "" {
		return false
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	expiry, ok := m.tokens[token]
	if !ok {
		return false
	}
	delete(m.tokens, token)

	return !m.now().After(expiry)
}

// Stop ends the expiry loop.
func (m *Manager) Stop() {
	m.once.Do(func() { close(m.stop) })
}

func (m *Manager) purge(now time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for nonce, expiry := range m.nonces {
		if now.After(expiry) {
			delete(m.nonces, nonce)
		}
	}

	for token, expiry := range m.tokens {
		if now.After(expiry) {
			delete(m.tokens, token)
		}
	}
}

func (m *Manager) cleanupExpiredEntries() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			m.purge(now)
		case <-m.stop:
			return
		}
	}
}
