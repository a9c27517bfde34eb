package storage

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrTokenInvalid covers malformed or tampered stream tokens.
	ErrTokenInvalid = errors.New("invalid stream token")
	// ErrTokenExpired is returned for well-formed tokens past their expiry.
	ErrTokenExpired = errors.New("stream token expired")
)

// StreamGrant is the payload carried by a signed stream token.
type StreamGrant struct {
	VideoID   string
	UserID    string
	ExpiresAt time.Time
}

// SignedURLSigner creates and validates expiring media stream tokens.
type SignedURLSigner struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSignedURLSigner constructs a signer with the provided secret and TTL.
func NewSignedURLSigner(secret string, ttl time.Duration) *SignedURLSigner {
	if ttl <= 0 {
		ttl = 4 * time.Hour
	}
	return &SignedURLSigner{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// Sign returns a token granting userID access to videoID until the TTL elapses.
func (s *SignedURLSigner) Sign(videoID, userID string) (string, time.Time, error) {
	if videoID == "" || userID == "" {
		return "", time.Time{}, fmt.Errorf("videoID and userID required")
	}
	if len(s.secret) == 0 {
		return "", time.Time{}, fmt.Errorf("signing secret missing")
	}
	expiresAt := s.now().Add(s.ttl)
	ts := strconv.FormatInt(expiresAt.Unix(), 10)
	encodedUser := base64.RawURLEncoding.EncodeToString([]byte(userID))
	signature := s.mac(videoID, ts, encodedUser)
	return strings.Join([]string{videoID, ts, encodedUser, signature}, "."), expiresAt, nil
}

// Verify validates a token and returns the grant it carries.
func (s *SignedURLSigner) Verify(token string) (StreamGrant, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return StreamGrant{}, ErrTokenInvalid
	}
	videoID, ts, encodedUser, signature := parts[0], parts[1], parts[2], parts[3]

	if !hmac.Equal([]byte(s.mac(videoID, ts, encodedUser)), []byte(signature)) {
		return StreamGrant{}, ErrTokenInvalid
	}
	expUnix, err := strconv.ParseInt(ts, 10, 64)
	if err != nil {
		return StreamGrant{}, ErrTokenInvalid
	}
	rawUser, err := base64.RawURLEncoding.DecodeString(encodedUser)
	if err != nil {
		return StreamGrant{}, ErrTokenInvalid
	}

	grant := StreamGrant{VideoID: videoID, UserID: string(rawUser), ExpiresAt: time.Unix(expUnix, 0)}
	if s.now().After(grant.ExpiresAt) {
		return grant, ErrTokenExpired
	}
	return grant, nil
}

func (s *SignedURLSigner) mac(videoID, ts, encodedUser string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(videoID + "|" + ts + "|" + encodedUser))
	return hex.EncodeToString(mac.Sum(nil))
}
