package csrf

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultTTL is how long an issued token stays valid.
const DefaultTTL = 1 * time.Hour

// HeaderName is the request header mutating calls must carry.
const HeaderName = "X-CSRF-Token"

// anonymousBinding is the session binding used for callers without a session.
const anonymousBinding = "anonymous"

// Check failure reasons. Verify collapses all of them to false; the
// perimeter uses Check directly so it can log why a token was rejected.
var (
	ErrMalformed = errors.New("csrf: malformed token")
	ErrExpired   = errors.New("csrf: token expired")
	ErrMismatch  = errors.New("csrf: signature mismatch")
)

// Codec issues and verifies signed, time-boxed anti-forgery tokens.
// Tokens have the shape random.timestamp.signature where the signature is an
// HMAC-SHA256 over the random value, the issuance time and the caller's
// session binding. A token minted for one session never validates against
// another.
type Codec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewCodec creates a codec with the given signing secret and the default TTL
func NewCodec(secret string) *Codec {
	return &Codec{
		secret: []byte(secret),
		ttl:    DefaultTTL,
		now:    time.Now,
	}
}

// NewCodecWithTTL creates a codec with an explicit token lifetime
func NewCodecWithTTL(secret string, ttl time.Duration) *Codec {
	c := NewCodec(secret)
	if ttl > 0 {
		c.ttl = ttl
	}
	return c
}

// Issue generates a fresh token bound to the given session binding.
// The only failure mode is the process random source being broken, which is
// not recoverable by the caller.
func (c *Codec) Issue(binding string) (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("csrf: random source failed: %w", err)
	}

	random := base64.RawURLEncoding.EncodeToString(buf)
	timestamp := strconv.FormatInt(c.now().UnixMilli(), 10)
	signature := base64.RawURLEncoding.EncodeToString(c.sign(random, timestamp, binding))

	return random + "." + timestamp + "." + signature, nil
}

// Check validates a token against a session binding and reports why it was
// rejected. It never panics on malformed input.
func (c *Codec) Check(token, binding string) error {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return ErrMalformed
	}
	random, timestamp, signature := parts[0], parts[1], parts[2]

	issuedAt, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrMalformed
	}
	if c.now().UnixMilli()-issuedAt > c.ttl.Milliseconds() {
		return ErrExpired
	}

	provided, err := base64.RawURLEncoding.DecodeString(signature)
	if err != nil {
		return ErrMalformed
	}

	// Constant-time comparison; a plain == would leak how many leading
	// bytes of the signature were correct.
	if !hmac.Equal(provided, c.sign(random, timestamp, binding)) {
		return ErrMismatch
	}
	return nil
}

// Verify reports whether the token is valid for the given session binding
func (c *Codec) Verify(token, binding string) bool {
	return c.Check(token, binding) == nil
}

// SessionBinding derives a stable binding string from a session token and
// user ID. Distinct logical sessions get distinct bindings; callers without a
// session share a stable anonymous binding.
func (c *Codec) SessionBinding(sessionToken string, userID uint) string {
	if sessionToken == "" && userID == 0 {
		sessionToken = anonymousBinding
	}

	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(sessionToken))
	mac.Write([]byte(":"))
	mac.Write([]byte(strconv.FormatUint(uint64(userID), 10)))

	return hex.EncodeToString(mac.Sum(nil))[:32]
}

// sign computes the raw HMAC over random.timestamp.binding
func (c *Codec) sign(random, timestamp, binding string) []byte {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(random))
	mac.Write([]byte("."))
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write([]byte(binding))

	return mac.Sum(nil)
}
