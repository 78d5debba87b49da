package auth_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/plantgate/internal/auth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSigningMethod(t *testing.T) {
	method, err := auth.ParseSigningMethod("")
	require.NoError(t, err)
	assert.Equal(t, "EdDSA", method.Alg())

	for _, alg := range []string{"EdDSA", "RS256", "RS384", "RS512", "PS256", "ES256"} {
		method, err := auth.ParseSigningMethod(alg)
		require.NoError(t, err, alg)
		assert.Equal(t, alg, method.Alg())
	}
	for _, alg := range []string{"HS256", "none", "XYZ"} {
		_, err := auth.ParseSigningMethod(alg)
		assert.ErrorIs(t, err, auth.ErrUnsupportedAlgorithm, alg)
	}
}

func TestGenerateKeysWritesFiles(t *testing.T) {
	for _, alg := range []string{"EdDSA", "RS256", "ES256"} {
		t.Run(alg, func(t *testing.T) {
			dir := t.TempDir()
			privatePath := filepath.Join(dir, "keys", "private.pem")
			publicPath := filepath.Join(dir, "keys", "public.pem")

			keys, err := auth.LoadKeys(auth.KeyConfig{Algorithm: alg, PrivateKeyPath: privatePath, PublicKeyPath: publicPath})
			require.NoError(t, err)
			assert.Equal(t, alg, keys.Method.Alg())

			info, err := os.Stat(privatePath)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
			info, err = os.Stat(publicPath)
			require.NoError(t, err)
			assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())

			// a second load reuses the persisted pair
			again, err := auth.LoadKeys(auth.KeyConfig{Algorithm: alg, PrivateKeyPath: privatePath, PublicKeyPath: publicPath})
			require.NoError(t, err)
			assert.Equal(t, keys.PublicKey, again.PublicKey)
		})
	}
}

func TestGenerateKeysRefusesOverwrite(t *testing.T) {
	dir := t.TempDir()
	privatePath := filepath.Join(dir, "private.pem")
	publicPath := filepath.Join(dir, "public.pem")
	require.NoError(t, os.WriteFile(publicPath, []byte("existing"), 0o644))

	_, _, err := auth.GenerateKeys(jwt.SigningMethodEdDSA, privatePath, publicPath)
	assert.ErrorIs(t, err, auth.ErrKeyFileExists)
	_, err = os.Stat(privatePath)
	assert.True(t, os.IsNotExist(err))

	// a lone public key is not enough material, and must not be replaced
	_, err = auth.LoadKeys(auth.KeyConfig{PrivateKeyPath: privatePath, PublicKeyPath: publicPath})
	assert.ErrorIs(t, err, auth.ErrKeyFileExists)
	data, err := os.ReadFile(publicPath)
	require.NoError(t, err)
	assert.Equal(t, "existing", string(data))
}

func TestLoadKeysInlinePEM(t *testing.T) {
	dir := t.TempDir()
	privatePEM, publicPEM, err := auth.GenerateKeys(jwt.SigningMethodES256, filepath.Join(dir, "a.pem"), filepath.Join(dir, "b.pem"))
	require.NoError(t, err)

	keys, err := auth.LoadKeys(auth.KeyConfig{
		Algorithm:      "ES256",
		PrivateKey:     string(privatePEM),
		PublicKey:      string(publicPEM),
		PrivateKeyPath: filepath.Join(dir, "unused-private.pem"),
		PublicKeyPath:  filepath.Join(dir, "unused-public.pem"),
	})
	require.NoError(t, err)
	assert.Equal(t, "ES256", keys.Method.Alg())
	_, err = os.Stat(filepath.Join(dir, "unused-private.pem"))
	assert.True(t, os.IsNotExist(err))
}

func TestParseKeysMismatch(t *testing.T) {
	dir := t.TempDir()
	privateA, _, err := auth.GenerateKeys(jwt.SigningMethodEdDSA, filepath.Join(dir, "a1"), filepath.Join(dir, "a2"))
	require.NoError(t, err)
	_, publicB, err := auth.GenerateKeys(jwt.SigningMethodEdDSA, filepath.Join(dir, "b1"), filepath.Join(dir, "b2"))
	require.NoError(t, err)

	_, err = auth.ParseKeys(jwt.SigningMethodEdDSA, privateA, publicB)
	assert.ErrorIs(t, err, auth.ErrKeyMismatch)

	_, err = auth.ParseKeys(jwt.SigningMethodRS256, privateA, publicB)
	assert.Error(t, err)
}
