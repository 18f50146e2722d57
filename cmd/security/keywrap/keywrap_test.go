package keywrap

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustKey(t *testing.T) []byte {
	t.Helper()
	k, err := NewKey()
	require.NoError(t, err)
	return k
}

func TestWrapUnwrap_RoundTrip(t *testing.T) {
	kek := mustKey(t)
	vk := bytes.Repeat([]byte{0x42}, 32)

	env, err := Wrap(kek, vk)
	require.NoError(t, err)
	require.NoError(t, env.Validate())
	assert.Len(t, env.IV, IVSize)
	assert.Len(t, env.Tag, TagSize)
	assert.Len(t, env.Ciphertext, len(vk))

	got, err := Unwrap(kek, env)
	require.NoError(t, err)
	assert.Equal(t, vk, got)
}

func TestUnwrap_WrongKey(t *testing.T) {
	env, err := Wrap(mustKey(t), []byte("vault key material"))
	require.NoError(t, err)

	_, err = Unwrap(mustKey(t), env)
	assert.ErrorIs(t, err, ErrUnwrap)
}

func TestUnwrap_AnyBitFlipFails(t *testing.T) {
	kek := mustKey(t)
	env, err := Wrap(kek, bytes.Repeat([]byte{7}, 32))
	require.NoError(t, err)

	flip := func(field []byte, i int) {
		field[i] ^= 0x01
	}

	for i := range env.Ciphertext {
		tampered := clone(env)
		flip(tampered.Ciphertext, i)
		_, err := Unwrap(kek, tampered)
		require.ErrorIs(t, err, ErrUnwrap, "ciphertext byte %d", i)
	}
	for i := range env.Tag {
		tampered := clone(env)
		flip(tampered.Tag, i)
		_, err := Unwrap(kek, tampered)
		require.ErrorIs(t, err, ErrUnwrap, "tag byte %d", i)
	}
	for i := range env.IV {
		tampered := clone(env)
		flip(tampered.IV, i)
		_, err := Unwrap(kek, tampered)
		require.ErrorIs(t, err, ErrUnwrap, "iv byte %d", i)
	}
}

func TestUnwrap_AADMismatch(t *testing.T) {
	kek := mustKey(t)
	env, err := WrapAAD(kek, []byte("totp seed"), []byte("account-1"))
	require.NoError(t, err)

	got, err := UnwrapAAD(kek, env, []byte("account-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("totp seed"), got)

	_, err = UnwrapAAD(kek, env, []byte("account-2"))
	assert.ErrorIs(t, err, ErrUnwrap)
	_, err = Unwrap(kek, env)
	assert.ErrorIs(t, err, ErrUnwrap)
}

func TestWrap_InvalidKey(t *testing.T) {
	_, err := Wrap([]byte("too short"), []byte("x"))
	assert.ErrorIs(t, err, ErrInvalidKey)
}

func TestUnwrap_WrongKeyLengthIsUnwrapError(t *testing.T) {
	kek := mustKey(t)
	env, err := Wrap(kek, []byte("vault key"))
	require.NoError(t, err)

	for _, n := range []int{0, 16, 24, 31, 33} {
		_, err := Unwrap(make([]byte, n), env)
		assert.ErrorIs(t, err, ErrUnwrap, "kek length %d", n)
		assert.NotErrorIs(t, err, ErrInvalidKey, "kek length %d", n)
	}
	_, err = Unwrap(kek[:16], env)
	assert.ErrorIs(t, err, ErrUnwrap)
}

func TestUnwrap_BadShapes(t *testing.T) {
	kek := mustKey(t)
	env, err := Wrap(kek, []byte("abc"))
	require.NoError(t, err)

	short := clone(env)
	short.IV = short.IV[:8]
	_, err = Unwrap(kek, short)
	assert.ErrorIs(t, err, ErrUnwrap)

	noTag := clone(env)
	noTag.Tag = nil
	_, err = Unwrap(kek, noTag)
	assert.ErrorIs(t, err, ErrUnwrap)
}

func TestWrap_IVsAreUnique(t *testing.T) {
	kek := mustKey(t)
	seen := make(map[string]struct{}, 10_000)

	for i := 0; i < 10_000; i++ {
		env, err := Wrap(kek, []byte("same plaintext"))
		require.NoError(t, err)
		_, dup := seen[string(env.IV)]
		require.False(t, dup, "iv reused after %d wraps", i)
		seen[string(env.IV)] = struct{}{}
	}
}

func TestEnvelope_JSON(t *testing.T) {
	kek := mustKey(t)
	env, err := Wrap(kek, []byte("payload"))
	require.NoError(t, err)

	data, err := json.Marshal(env)
	require.NoError(t, err)

	var fields map[string]string
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Contains(t, fields, "ciphertext")
	assert.Contains(t, fields, "iv")
	assert.Contains(t, fields, "tag")

	var back Envelope
	require.NoError(t, json.Unmarshal(data, &back))
	got, err := Unwrap(kek, back)
	require.NoError(t, err)
	assert.Equal(t, []byte("payload"), got)

	err = json.Unmarshal([]byte(`{"ciphertext":"***","iv":"","tag":""}`), &back)
	assert.True(t, errors.Is(err, ErrEnvelope))
}

func TestEnvelope_Validate(t *testing.T) {
	assert.ErrorIs(t, Envelope{}.Validate(), ErrEnvelope)
	assert.ErrorIs(t, Envelope{IV: make([]byte, IVSize), Tag: make([]byte, TagSize)}.Validate(), ErrEnvelope)
	assert.NoError(t, Envelope{Ciphertext: []byte{1}, IV: make([]byte, IVSize), Tag: make([]byte, TagSize)}.Validate())
}

func clone(e Envelope) Envelope {
	return Envelope{
		Ciphertext: bytes.Clone(e.Ciphertext),
		IV:         bytes.Clone(e.IV),
		Tag:        bytes.Clone(e.Tag),
	}
}
