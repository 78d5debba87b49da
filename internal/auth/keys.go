package auth

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/golang-jwt/jwt/v5"
	"github.com/khanghh/plantgate/params"
)

var ErrKeyFileExists = errors.New("key file already exists")

// KeyConfig holds the signing key material. Inline PEM takes precedence over
// the file paths.
type KeyConfig struct {
	Algorithm      string
	PrivateKey     string
	PublicKey      string
	PrivateKeyPath string
	PublicKeyPath  string
}

// Keys is the process-wide signing keypair. It is built once at startup and
// never mutated.
type Keys struct {
	Method     jwt.SigningMethod
	PrivateKey crypto.PrivateKey
	PublicKey  crypto.PublicKey
}

// ParseSigningMethod accepts the asymmetric JWS algorithms only. An empty
// name selects EdDSA.
func ParseSigningMethod(alg string) (jwt.SigningMethod, error) {
	if alg == "" {
		return jwt.SigningMethodEdDSA, nil
	}
	switch method := jwt.GetSigningMethod(alg).(type) {
	case *jwt.SigningMethodEd25519, *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS, *jwt.SigningMethodECDSA:
		return method, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, alg)
}

// LoadKeys returns the configured keypair. When no material is available it
// generates a new pair and writes it to the configured paths.
func LoadKeys(cfg KeyConfig) (*Keys, error) {
	method, err := ParseSigningMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	if cfg.PrivateKeyPath == "" {
		cfg.PrivateKeyPath = params.DefaultPrivateKeyPath
	}
	if cfg.PublicKeyPath == "" {
		cfg.PublicKeyPath = params.DefaultPublicKeyPath
	}

	privatePEM, err := readKeyMaterial(cfg.PrivateKey, cfg.PrivateKeyPath)
	if err != nil {
		return nil, err
	}
	publicPEM, err := readKeyMaterial(cfg.PublicKey, cfg.PublicKeyPath)
	if err != nil {
		return nil, err
	}
	if privatePEM == nil || publicPEM == nil {
		slog.Warn("No signing keys found, generating a new keypair",
			"alg", method.Alg(),
			"privateKeyPath", cfg.PrivateKeyPath,
			"publicKeyPath", cfg.PublicKeyPath,
		)
		if privatePEM, publicPEM, err = GenerateKeys(method, cfg.PrivateKeyPath, cfg.PublicKeyPath); err != nil {
			return nil, err
		}
	}
	return ParseKeys(method, privatePEM, publicPEM)
}

// ParseKeys decodes a PEM keypair for method and checks that both halves
// belong together.
func ParseKeys(method jwt.SigningMethod, privatePEM, publicPEM []byte) (*Keys, error) {
	var (
		privateKey crypto.PrivateKey
		publicKey  crypto.PublicKey
		err        error
	)
	switch method.(type) {
	case *jwt.SigningMethodEd25519:
		if privateKey, err = jwt.ParseEdPrivateKeyFromPEM(privatePEM); err == nil {
			publicKey, err = jwt.ParseEdPublicKeyFromPEM(publicPEM)
		}
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		if privateKey, err = jwt.ParseRSAPrivateKeyFromPEM(privatePEM); err == nil {
			publicKey, err = jwt.ParseRSAPublicKeyFromPEM(publicPEM)
		}
	case *jwt.SigningMethodECDSA:
		if privateKey, err = jwt.ParseECPrivateKeyFromPEM(privatePEM); err == nil {
			publicKey, err = jwt.ParseECPublicKeyFromPEM(publicPEM)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, method.Alg())
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s key: %w", method.Alg(), err)
	}

	const sample = "plantgate"
	sig, err := method.Sign(sample, privateKey)
	if err != nil {
		return nil, fmt.Errorf("sign with %s key: %w", method.Alg(), err)
	}
	if err := method.Verify(sample, sig, publicKey); err != nil {
		return nil, ErrKeyMismatch
	}
	return &Keys{Method: method, PrivateKey: privateKey, PublicKey: publicKey}, nil
}

// GenerateKeys creates a keypair for method and writes the private key as
// PKCS#8 (0600) and the public key as PKIX (0644). Existing files are never
// overwritten.
func GenerateKeys(method jwt.SigningMethod, privateKeyPath, publicKeyPath string) ([]byte, []byte, error) {
	for _, path := range []string{privateKeyPath, publicKeyPath} {
		if _, err := os.Stat(path); err == nil {
			return nil, nil, fmt.Errorf("%w: %s", ErrKeyFileExists, path)
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, nil, err
		}
	}

	privateKey, publicKey, err := generateKeyPair(method)
	if err != nil {
		return nil, nil, err
	}
	privateDER, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		return nil, nil, err
	}
	publicDER, err := x509.MarshalPKIXPublicKey(publicKey)
	if err != nil {
		return nil, nil, err
	}
	privatePEM := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: privateDER})
	publicPEM := pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicDER})

	if err := writeKeyFile(privateKeyPath, privatePEM, 0o600); err != nil {
		return nil, nil, err
	}
	if err := writeKeyFile(publicKeyPath, publicPEM, 0o644); err != nil {
		return nil, nil, err
	}
	return privatePEM, publicPEM, nil
}

func generateKeyPair(method jwt.SigningMethod) (crypto.PrivateKey, crypto.PublicKey, error) {
	switch m := method.(type) {
	case *jwt.SigningMethodEd25519:
		publicKey, privateKey, err := ed25519.GenerateKey(rand.Reader)
		return privateKey, publicKey, err
	case *jwt.SigningMethodRSA, *jwt.SigningMethodRSAPSS:
		privateKey, err := rsa.GenerateKey(rand.Reader, params.GeneratedRSAKeyBits)
		if err != nil {
			return nil, nil, err
		}
		return privateKey, &privateKey.PublicKey, nil
	case *jwt.SigningMethodECDSA:
		var curve elliptic.Curve
		switch m.CurveBits {
		case 256:
			curve = elliptic.P256()
		case 384:
			curve = elliptic.P384()
		case 521:
			curve = elliptic.P521()
		default:
			return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, m.Alg())
		}
		privateKey, err := ecdsa.GenerateKey(curve, rand.Reader)
		if err != nil {
			return nil, nil, err
		}
		return privateKey, &privateKey.PublicKey, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, method.Alg())
}

func readKeyMaterial(inline, path string) ([]byte, error) {
	if inline != "" {
		return []byte(inline), nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}
	return data, nil
}

func writeKeyFile(path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if errors.Is(err, fs.ErrExist) {
		return fmt.Errorf("%w: %s", ErrKeyFileExists, path)
	}
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
