// Package signing wraps the certificate and keyed-hash primitives the
// protocol adapters sign and verify canonical strings with. Every failure
// path returns an error; callers treat any error as a failed signature,
// never as success.
package signing

import (
	"crypto"
	"crypto/md5"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"encoding/pem"
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownAlgorithm = errors.New("unknown digest algorithm")
	ErrBadKey           = errors.New("malformed key material")
)

func hashFor(algo string) (crypto.Hash, error) {
	switch strings.ToLower(strings.TrimSpace(algo)) {
	case "md5":
		return crypto.MD5, nil
	case "sha1":
		return crypto.SHA1, nil
	case "sha256":
		return crypto.SHA256, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
}

func digest(h crypto.Hash, data []byte) []byte {
	switch h {
	case crypto.MD5:
		sum := md5.Sum(data)
		return sum[:]
	case crypto.SHA1:
		sum := sha1.Sum(data)
		return sum[:]
	default:
		sum := sha256.Sum256(data)
		return sum[:]
	}
}

func parsePrivateKey(pemData string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemData)))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrBadKey)
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadKey, err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("%w: not an RSA key", ErrBadKey)
	}
	return key, nil
}

func parsePublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(strings.TrimSpace(pemData)))
	if block == nil {
		return nil, fmt.Errorf("%w: no PEM block", ErrBadKey)
	}
	if cert, err := x509.ParseCertificate(block.Bytes); err == nil {
		pub, ok := cert.PublicKey.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: certificate is not RSA", ErrBadKey)
		}
		return pub, nil
	}
	if parsed, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		pub, ok := parsed.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("%w: not an RSA public key", ErrBadKey)
		}
		return pub, nil
	}
	return nil, fmt.Errorf("%w: neither certificate nor public key", ErrBadKey)
}

// Sign produces a PKCS#1 v1.5 signature over data with the given digest.
func Sign(privatePEM, algo string, data []byte) ([]byte, error) {
	h, err := hashFor(algo)
	if err != nil {
		return nil, err
	}
	key, err := parsePrivateKey(privatePEM)
	if err != nil {
		return nil, err
	}
	return rsa.SignPKCS1v15(rand.Reader, key, h, digest(h, data))
}

// Verify checks a PKCS#1 v1.5 signature against the certificate (or bare
// public key) in certPEM.
func Verify(certPEM, algo string, data, signature []byte) error {
	h, err := hashFor(algo)
	if err != nil {
		return err
	}
	pub, err := parsePublicKey(certPEM)
	if err != nil {
		return err
	}
	return rsa.VerifyPKCS1v15(pub, h, digest(h, data), signature)
}

// KeyedHash computes the Solo-family MAC: the configured digest over the
// canonical string, hex-encoded, uppercased.
func KeyedHash(algo string, data []byte) (string, error) {
	h, err := hashFor(algo)
	if err != nil {
		return "", err
	}
	return strings.ToUpper(hex.EncodeToString(digest(h, data))), nil
}
