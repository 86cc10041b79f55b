package auth

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	otpTTL         = 5 * time.Minute
	otpMaxAttempts = 5
)

var (
	ErrOTPNotFound = errors.New("otp not found or expired")
	ErrOTPMismatch = errors.New("otp does not match")
	ErrOTPTooMany  = errors.New("too many otp attempts")
)

// OTPStore issues and verifies one-time registration codes. Codes live in
// redis with a short TTL; verification is single-use.
type OTPStore struct {
	rdb *redis.Client
}

func NewOTPStore(rdb *redis.Client) *OTPStore {
	return &OTPStore{rdb: rdb}
}

// Issue generates a 6-digit code for the given mobile number and stores it.
// Re-issuing replaces any previous code and resets the attempt counter.
func (s *OTPStore) Issue(ctx context.Context, mobile string) (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1000000))
	if err != nil {
		return "", fmt.Errorf("generate otp: %w", err)
	}
	code := fmt.Sprintf("%06d", n.Int64())

	pipe := s.rdb.TxPipeline()
	pipe.Set(ctx, otpCodeKey(mobile), code, otpTTL)
	pipe.Del(ctx, otpAttemptsKey(mobile))
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("store otp: %w", err)
	}
	return code, nil
}

// Verify checks the submitted code. On success the code is consumed.
func (s *OTPStore) Verify(ctx context.Context, mobile, code string) error {
	attempts, err := s.rdb.Incr(ctx, otpAttemptsKey(mobile)).Result()
	if err != nil {
		return fmt.Errorf("count otp attempts: %w", err)
	}
	if attempts == 1 {
		s.rdb.Expire(ctx, otpAttemptsKey(mobile), otpTTL)
	}
	if attempts > otpMaxAttempts {
		return ErrOTPTooMany
	}

	stored, err := s.rdb.Get(ctx, otpCodeKey(mobile)).Result()
	if errors.Is(err, redis.Nil) {
		return ErrOTPNotFound
	}
	if err != nil {
		return fmt.Errorf("load otp: %w", err)
	}
	if stored != code {
		return ErrOTPMismatch
	}

	s.rdb.Del(ctx, otpCodeKey(mobile), otpAttemptsKey(mobile))
	return nil
}

func otpCodeKey(mobile string) string     { return "otp:code:" + mobile }
func otpAttemptsKey(mobile string) string { return "otp:attempts:" + mobile }
