package envelope

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/and161185/doc-issuer/internal/errs"
	"github.com/and161185/doc-issuer/internal/model"
)

func TestEncryptDecrypt_RoundTripAndNonDeterminism(t *testing.T) {
	t.Parallel()
	kp, err := GenerateKey()
	require.NoError(t, err)

	doc := []byte(`[{"fieldLabel":"name","fieldValue":"Alice"}]`)
	a, err := Encrypt(kp.PublicKeyBase64(), doc)
	require.NoError(t, err)
	b, err := Encrypt(kp.PublicKeyBase64(), doc)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
	require.True(t, strings.HasPrefix(string(a), "0x"))

	for _, blob := range []model.HexBlob{a, b} {
		pt, err := Decrypt(blob, &kp.Private)
		require.NoError(t, err)
		require.Equal(t, doc, pt)
	}
}

func TestEncrypt_EnvelopeShape(t *testing.T) {
	t.Parallel()
	kp, err := GenerateKey()
	require.NoError(t, err)

	blob, err := Encrypt(kp.PublicKeyBase64(), []byte("x"))
	require.NoError(t, err)
	raw, err := hex.DecodeString(strings.TrimPrefix(string(blob), "0x"))
	require.NoError(t, err)

	var env map[string]string
	require.NoError(t, json.Unmarshal(raw, &env))
	require.Equal(t, Version, env["version"])
	for _, k := range []string{"nonce", "ephemPublicKey", "ciphertext"} {
		require.NotEmpty(t, env[k], k)
	}
}

func TestEncrypt_MalformedKey(t *testing.T) {
	t.Parallel()
	for _, key := range []string{"", "   ", "not-base64!", base64.StdEncoding.EncodeToString([]byte("short"))} {
		_, err := Encrypt(key, []byte("doc"))
		require.ErrorIs(t, err, errs.ErrEncryption, key)
	}
}

func TestDecrypt_WrongKeyFails(t *testing.T) {
	t.Parallel()
	owner, _ := GenerateKey()
	other, _ := GenerateKey()

	blob, err := Encrypt(owner.PublicKeyBase64(), []byte("secret"))
	require.NoError(t, err)
	_, err = Decrypt(blob, &other.Private)
	require.Error(t, err)

	_, err = Decrypt("0xzz", &owner.Private)
	require.Error(t, err)
}

func TestKeyPairFromPrivate_AndAddress(t *testing.T) {
	t.Parallel()
	kp, err := GenerateKey()
	require.NoError(t, err)

	restored, err := KeyPairFromPrivate(kp.Private[:])
	require.NoError(t, err)
	require.Equal(t, kp.Public, restored.Public)

	addr := kp.Address()
	parsed, err := model.ParseAddress(string(addr))
	require.NoError(t, err)
	require.Equal(t, addr, parsed)
	require.Equal(t, addr, restored.Address())

	_, err = KeyPairFromPrivate([]byte{1, 2})
	require.Error(t, err)
}
