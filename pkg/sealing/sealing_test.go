package sealing

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testParams = KDFParams{Time: 1, MemoryKB: 8 * 1024, Threads: 1}

func TestSealer_RoundTrip(t *testing.T) {
	s, err := NewSealer("correct horse", testParams)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("private key bytes"), []byte("key-1"))
	require.NoError(t, err)
	assert.NotContains(t, string(sealed), "private key bytes")

	opened, err := s.Open(sealed, []byte("key-1"))
	require.NoError(t, err)
	assert.Equal(t, []byte("private key bytes"), opened)
}

func TestSealer_WrongPassphrase(t *testing.T) {
	s, err := NewSealer("correct horse", testParams)
	require.NoError(t, err)
	other, err := NewSealer("battery staple", testParams)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("secret"), nil)
	require.NoError(t, err)

	_, err = other.Open(sealed, nil)
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestSealer_AdditionalDataBinding(t *testing.T) {
	s, err := NewSealer("pw", testParams)
	require.NoError(t, err)

	sealed, err := s.Seal([]byte("secret"), []byte("key-1"))
	require.NoError(t, err)

	_, err = s.Open(sealed, []byte("key-2"))
	assert.ErrorIs(t, err, ErrAuthFailed)
}

func TestSealer_InvalidEnvelope(t *testing.T) {
	s, err := NewSealer("pw", testParams)
	require.NoError(t, err)

	_, err = s.Open([]byte("not json"), nil)
	assert.ErrorIs(t, err, ErrInvalid)

	bad, err := json.Marshal(&Envelope{Version: 99, KDF: kdfArgon2id})
	require.NoError(t, err)
	_, err = s.Open(bad, nil)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestNewSealer_Validation(t *testing.T) {
	_, err := NewSealer("", testParams)
	assert.Error(t, err)

	_, err = NewSealer("pw", KDFParams{})
	assert.Error(t, err)
}
