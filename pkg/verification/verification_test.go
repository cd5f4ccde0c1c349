package verification

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/lestrrat-go/jwx/v3/jwk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKeyAndSignature(t *testing.T, payload []byte) (*rsa.PrivateKey, string, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	der, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	digest := sha256.Sum256(payload)
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, digest[:])
	require.NoError(t, err)
	return key, base64.StdEncoding.EncodeToString(der), base64.StdEncoding.EncodeToString(sig)
}

func TestVerifySignature(t *testing.T) {
	_, pub, sig := newKeyAndSignature(t, []byte("hello"))

	assert.NoError(t, VerifySignature(pub, []byte("hello"), sig))
	assert.Error(t, VerifySignature(pub, []byte("hello!"), sig))
	assert.Error(t, VerifySignature(pub, []byte("hello"), "%%%"))

	_, otherPub, _ := newKeyAndSignature(t, []byte("hello"))
	assert.Error(t, VerifySignature(otherPub, []byte("hello"), sig))
}

func TestParsePublicKey_PEMAndBase64(t *testing.T) {
	key, pub, sig := newKeyAndSignature(t, []byte("payload"))

	pemBytes, err := PublicKeyPEM(pub)
	require.NoError(t, err)
	assert.Contains(t, string(pemBytes), "BEGIN PUBLIC KEY")

	parsed, err := ParsePublicKey(string(pemBytes))
	require.NoError(t, err)
	assert.True(t, parsed.Equal(&key.PublicKey))
	assert.NoError(t, VerifySignature(string(pemBytes), []byte("payload"), sig))

	_, err = ParsePublicKey("")
	assert.Error(t, err)
	_, err = ParsePublicKey("bm90IGEga2V5")
	assert.Error(t, err)
}

func TestPublicKeyJWK(t *testing.T) {
	key, pub, _ := newKeyAndSignature(t, []byte("x"))

	raw, err := PublicKeyJWKJSON(pub)
	require.NoError(t, err)

	var fields map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &fields))
	assert.Equal(t, "RSA", fields["kty"])
	assert.Equal(t, "RS256", fields["alg"])
	assert.Equal(t, "sig", fields["use"])
	assert.NotEmpty(t, fields["kid"])
	assert.NotContains(t, fields, "d")

	parsed, err := jwk.ParseKey(raw)
	require.NoError(t, err)
	var rsaPub rsa.PublicKey
	require.NoError(t, jwk.Export(parsed, &rsaPub))
	assert.True(t, rsaPub.Equal(&key.PublicKey))
}

func TestPublicKeyJWK_StableKeyID(t *testing.T) {
	_, pub, _ := newKeyAndSignature(t, []byte("x"))

	a, err := PublicKeyJWK(pub)
	require.NoError(t, err)
	b, err := PublicKeyJWK(pub)
	require.NoError(t, err)

	kidA, ok := a.KeyID()
	require.True(t, ok)
	kidB, ok := b.KeyID()
	require.True(t, ok)
	assert.Equal(t, kidA, kidB)
}
