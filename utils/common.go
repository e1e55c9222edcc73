package utils

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// DoWithRetry executes the function fn with retry attempts in case of an error.
// Parameters:
// fn - the function to be executed.
// attempts - the number of execution attempts.
// delay - the delay between attempts.
func DoWithRetry(fn func() error, attempts int, delay time.Duration) (err error) {
	for attempts > 0 {
		if err = fn(); err != nil {
			attempts--
			if attempts > 0 {
				time.Sleep(delay)
			}
			continue
		}
		return nil
	}
	return err
}

// DoWithRetryContext is DoWithRetry that stops waiting once ctx is done.
func DoWithRetryContext(ctx context.Context, fn func(ctx context.Context) error, attempts int, delay time.Duration) (err error) {
	for attempts > 0 {
		if err = fn(ctx); err == nil {
			return nil
		}
		attempts--
		if attempts == 0 {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%w: last error: %v", ctx.Err(), err)
		case <-time.After(delay):
		}
	}
	return err
}

// MaskEmail masks the email address by replacing some characters with asterisks.
// Example: example@example.com ->  ex*****@*********om
func MaskEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return email
	}

	localPart := parts[0]
	domainPart := parts[1]

	if len(localPart) > 2 {
		localPart = localPart[:2] + strings.Repeat("*", len(localPart)-2)
	}

	if len(domainPart) > 2 {
		domainPart = strings.Repeat("*", len(domainPart)-2) + domainPart[len(domainPart)-2:]
	}

	return localPart + "@" + domainPart
}

// GenerateID generates a new unique identifier.
func GenerateID() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate UUID: %w", err)
	}
	return id.String(), nil
}

func GenerateSimpleID() string {
	return uuid.New().String()
}

// UsernameFromEmail derives a username for providers that require one on sign-up.
// The local part of the email is used, falling back to a random suffix.
func UsernameFromEmail(email string) string {
	local, _, found := strings.Cut(email, "@")
	local = strings.TrimSpace(local)
	if found && len(local) >= 2 {
		return local
	}
	return "user_" + strings.ReplaceAll(GenerateSimpleID(), "-", "")[:8]
}
