package keywrap

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
)

const (
	KeySize = 32
	IVSize  = 12
	TagSize = 16
)

var (
	ErrInvalidKey = errors.New("keywrap: key must be 32 bytes")
	ErrUnwrap     = errors.New("keywrap: unable to unwrap")
	ErrEnvelope   = errors.New("keywrap: malformed envelope")
)

// Envelope is a wrapped secret.
type Envelope struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

type envelopeJSON struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	Tag        string `json:"tag"`
}

// MarshalJSON encodes every field as standard base64.
func (e Envelope) MarshalJSON() ([]byte, error) {
	b64 := base64.StdEncoding
	return json.Marshal(envelopeJSON{
		Ciphertext: b64.EncodeToString(e.Ciphertext),
		IV:         b64.EncodeToString(e.IV),
		Tag:        b64.EncodeToString(e.Tag),
	})
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	b64 := base64.StdEncoding
	ct, err := b64.DecodeString(raw.Ciphertext)
	if err != nil {
		return fmt.Errorf("%w: ciphertext", ErrEnvelope)
	}
	iv, err := b64.DecodeString(raw.IV)
	if err != nil {
		return fmt.Errorf("%w: iv", ErrEnvelope)
	}
	tag, err := b64.DecodeString(raw.Tag)
	if err != nil {
		return fmt.Errorf("%w: tag", ErrEnvelope)
	}
	*e = Envelope{Ciphertext: ct, IV: iv, Tag: tag}
	return nil
}

// Validate checks field shapes only; it cannot tell whether the envelope decrypts.
func (e Envelope) Validate() error {
	switch {
	case len(e.IV) != IVSize:
		return fmt.Errorf("%w: iv must be %d bytes", ErrEnvelope, IVSize)
	case len(e.Tag) != TagSize:
		return fmt.Errorf("%w: tag must be %d bytes", ErrEnvelope, TagSize)
	case len(e.Ciphertext) == 0:
		return fmt.Errorf("%w: empty ciphertext", ErrEnvelope)
	}
	return nil
}

// Wrap seals secret under kek.
func Wrap(kek, secret []byte) (Envelope, error) {
	return WrapAAD(kek, secret, nil)
}

// WrapAAD seals secret under kek, binding aad into the tag.
func WrapAAD(kek, secret, aad []byte) (Envelope, error) {
	aead, err := newGCM(kek)
	if err != nil {
		return Envelope{}, err
	}

	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return Envelope{}, fmt.Errorf("keywrap: iv: %w", err)
	}

	sealed := aead.Seal(nil, iv, secret, aad)
	split := len(sealed) - TagSize

	return Envelope{
		Ciphertext: sealed[:split:split],
		IV:         iv,
		Tag:        sealed[split:],
	}, nil
}

// Unwrap opens env with kek.
func Unwrap(kek []byte, env Envelope) ([]byte, error) {
	return UnwrapAAD(kek, env, nil)
}

// UnwrapAAD opens env with kek and the same aad used to wrap it.
// Every failure, a wrong-length kek included, is ErrUnwrap.
func UnwrapAAD(kek []byte, env Envelope, aad []byte) ([]byte, error) {
	aead, err := newGCM(kek)
	if err != nil {
		return nil, ErrUnwrap
	}
	if len(env.IV) != IVSize || len(env.Tag) != TagSize {
		return nil, ErrUnwrap
	}

	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)

	out, err := aead.Open(nil, env.IV, sealed, aad)
	if err != nil {
		return nil, ErrUnwrap
	}
	return out, nil
}

// NewKey returns a fresh random 256-bit key.
func NewKey() ([]byte, error) {
	k := make([]byte, KeySize)
	if _, err := rand.Read(k); err != nil {
		return nil, fmt.Errorf("keywrap: key: %w", err)
	}
	return k, nil
}

func newGCM(kek []byte) (cipher.AEAD, error) {
	if len(kek) != KeySize {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, ErrInvalidKey
	}
	return cipher.NewGCM(block)
}
