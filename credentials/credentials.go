// Package credentials resolves the AWS credential material consumed by the signer.
//
// A Source yields credentials on demand and may block on network or disk I/O;
// every implementation honours context cancellation. Chain composes sources with
// ordered fallback.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"
)

// Credentials is an immutable set of AWS credential material.
// The secret access key must never be logged.
type Credentials struct {
	AccessKeyID     string
	SecretAccessKey string
	SessionToken    string

	// Source describes which provider produced these credentials.
	Source string

	// CanExpire states if the credentials can expire.
	CanExpire bool
	// Expires is when the credentials become invalid.
	// Ignored unless CanExpire is true.
	Expires time.Time
}

// HasKeys reports whether both the access key and the secret key are present.
func (c Credentials) HasKeys() bool {
	return c.AccessKeyID != "" && c.SecretAccessKey != ""
}

// Expired reports whether the credentials are no longer valid at the given time.
func (c Credentials) Expired(at time.Time) bool {
	return c.CanExpire && !at.Before(c.Expires)
}

// ErrNoCredentials is returned by a Source that has no credential material to offer.
var ErrNoCredentials = errors.New("no credentials available")

// A Source yields credentials on demand.
// Resolve may involve network or disk I/O and must honour ctx.
type Source interface {
	Resolve(ctx context.Context) (Credentials, error)
}

// Static implements Source for a fixed set of credentials.
type Static struct {
	Value Credentials
}

func (s Static) Resolve(context.Context) (Credentials, error) {
	if !s.Value.HasKeys() {
		return Credentials{}, ErrNoCredentials
	}

	v := s.Value
	if v.Source == "" {
		v.Source = "Static"
	}

	return v, nil
}

// Env implements Source by reading the conventional AWS environment variables.
type Env struct{}

func (Env) Resolve(context.Context) (Credentials, error) {
	c := Credentials{
		AccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		SecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "Env",
	}

	if !c.HasKeys() {
		return Credentials{}, fmt.Errorf("environment: %w", ErrNoCredentials)
	}

	return c, nil
}
