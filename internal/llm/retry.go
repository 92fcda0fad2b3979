package llm

import (
	"math/rand"
	"strings"
	"time"
)

// retryableCodes are HTTP statuses treated as transient upstream trouble,
// per spec §4.1.
var retryableCodes = map[int]bool{
	429: true, 500: true, 502: true, 503: true, 504: true,
}

// retryableSubstrings are lowercase error-message fragments that mark a
// provider error as transient even when the code is absent or non-standard.
var retryableSubstrings = []string{"overloaded", "rate", "internal server"}

// isRetryableError classifies an upstream error per spec §4.1.
func isRetryableError(code int, message string) bool {
	if retryableCodes[code] {
		return true
	}
	lower := strings.ToLower(message)
	for _, s := range retryableSubstrings {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// backoffCap is the maximum delay emitted by backoffDelay, regardless of
// retry count or base.
const backoffCap = 60 * time.Second

// backoffDelay computes a full-jitter exponential backoff: base * 2^retries,
// capped, then scaled by a uniform factor in [0.5, 1.5). Mirrors the
// source's calculate_backoff_with_jitter.
func backoffDelay(retries int, base time.Duration) time.Duration {
	delay := base
	for i := 0; i < retries; i++ {
		delay *= 2
		if delay >= backoffCap {
			delay = backoffCap
			break
		}
	}
	jitterFactor := 0.5 + rand.Float64()
	scaled := time.Duration(float64(delay) * jitterFactor)
	if scaled > backoffCap {
		scaled = backoffCap
	}
	return scaled
}

// retryBaseDelay returns the base backoff used for a given HTTP status,
// per spec §4.1: rate-limit errors get a longer base than other 5xx errors.
func retryBaseDelay(code int) time.Duration {
	if code == 429 {
		return 5 * time.Second
	}
	return 2 * time.Second
}
