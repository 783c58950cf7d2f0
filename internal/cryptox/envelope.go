package cryptox

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"time"
)

var (
	// ErrUntrustedEnvelope is the single outcome callers need to handle:
	// the envelope must be treated as absent.
	ErrUntrustedEnvelope = errors.New("untrusted envelope")

	// ErrIntegrity covers structural, cryptographic and signature failures.
	ErrIntegrity = fmt.Errorf("%w: integrity check failed", ErrUntrustedEnvelope)

	// ErrExpired is returned for a correctly signed envelope older than the
	// freshness window.
	ErrExpired = fmt.Errorf("%w: envelope expired", ErrUntrustedEnvelope)
)

// Envelope is the stored form of an encrypted payload.
type Envelope struct {
	Content              string `json:"content"`
	Salt                 string `json:"salt"`
	CreatedAtEpochMillis int64  `json:"timestamp"`
}

// wrapper is what gets encrypted into Envelope.Content.
type wrapper struct {
	Data         string `json:"data"`
	Timestamp    int64  `json:"timestamp"`
	AppSignature string `json:"appSignature"`
}

// EnvelopeCipher encrypts payloads into Envelopes bound to one deployment.
// It is stateless and safe for concurrent use.
type EnvelopeCipher struct {
	secret    string
	signature string
	opts      options
}

// NewEnvelopeCipher returns an EnvelopeCipher bound to the server secret.
// The freshness window defaults to DefaultMaxAge.
func NewEnvelopeCipher(serverSecret string, opts ...Option) (*EnvelopeCipher, error) {
	if serverSecret == "" {
		return nil, ErrMissingServerSecret
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &EnvelopeCipher{
		secret:    serverSecret,
		signature: AppSignature(serverSecret),
		opts:      o,
	}, nil
}

// MaxAge returns the configured freshness window (0 = unlimited).
func (c *EnvelopeCipher) MaxAge() time.Duration { return c.opts.maxAge }

// Encrypt serializes payload to JSON and seals it. When salt is empty a
// random one is generated.
func (c *EnvelopeCipher) Encrypt(payload any, salt string) (*Envelope, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	if salt == "" {
		if salt, err = newSalt(c.opts.random); err != nil {
			return nil, err
		}
	}

	now := c.opts.clock.Now().UnixMilli()
	inner, err := json.Marshal(wrapper{Data: string(data), Timestamp: now, AppSignature: c.signature})
	if err != nil {
		return nil, fmt.Errorf("marshal wrapper: %w", err)
	}

	content, err := seal(DeriveKey(c.secret, salt), inner, c.opts.random)
	if err != nil {
		return nil, fmt.Errorf("encrypt: %w", err)
	}

	return &Envelope{Content: content, Salt: salt, CreatedAtEpochMillis: now}, nil
}

// Decrypt opens env and unmarshals the payload into out, which must be a
// non-nil pointer. Every failure is ErrIntegrity or ErrExpired, and out is
// left untouched when an error is returned.
func (c *EnvelopeCipher) Decrypt(env *Envelope, out any) error {
	data, err := c.open(env)
	if err != nil {
		return err
	}
	return decodeInto(data, out)
}

// decodeInto unmarshals into a fresh value and assigns it to out only once
// the whole payload decoded.
func decodeInto(data []byte, out any) error {
	dst := reflect.ValueOf(out)
	if dst.Kind() != reflect.Pointer || dst.IsNil() {
		return ErrIntegrity
	}

	tmp := reflect.New(dst.Elem().Type())
	if err := json.Unmarshal(data, tmp.Interface()); err != nil {
		return ErrIntegrity
	}
	dst.Elem().Set(tmp.Elem())
	return nil
}

// Validate reports whether env decrypts, carries this deployment's
// signature and is within the freshness window.
func (c *EnvelopeCipher) Validate(env *Envelope) bool {
	_, err := c.open(env)
	return err == nil
}

func (c *EnvelopeCipher) open(env *Envelope) ([]byte, error) {
	if env == nil || env.Content == "" {
		return nil, ErrIntegrity
	}

	plain, err := open(DeriveKey(c.secret, env.Salt), env.Content)
	if err != nil {
		return nil, ErrIntegrity
	}

	var w wrapper
	if err := json.Unmarshal(plain, &w); err != nil {
		return nil, ErrIntegrity
	}

	if subtle.ConstantTimeCompare([]byte(w.AppSignature), []byte(c.signature)) != 1 {
		return nil, ErrIntegrity
	}

	if c.opts.maxAge > 0 {
		age := c.opts.clock.Now().UnixMilli() - w.Timestamp
		if age > c.opts.maxAge.Milliseconds() {
			return nil, ErrExpired
		}
	}

	if !json.Valid([]byte(w.Data)) {
		return nil, ErrIntegrity
	}
	return []byte(w.Data), nil
}
