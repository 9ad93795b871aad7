package hostedform

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"errors"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/Aduraleke/firstclasstransfers-sub001/internal/provider"
)

var ErrInvalidSignature = errors.New("invalid signature")

// Canonical returns the string both sides sign: every field except the
// signature, sorted by name, joined as name=value&name=value. Values are
// used verbatim, not URL-encoded.
func Canonical(fields []provider.Field) string {
	sorted := make([]provider.Field, 0, len(fields))
	for _, f := range fields {
		if f.Name == FieldSignature {
			continue
		}
		sorted = append(sorted, f)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var b strings.Builder
	for i, f := range sorted {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(f.Value)
	}
	return b.String()
}

// fieldsFromValues rejects repeated names: a signature over a sorted
// key=value string is ambiguous if a key can appear twice.
func fieldsFromValues(values url.Values) ([]provider.Field, error) {
	fields := make([]provider.Field, 0, len(values))
	for name, vs := range values {
		if len(vs) != 1 {
			return nil, fmt.Errorf("field %q repeated", name)
		}
		fields = append(fields, provider.Field{Name: name, Value: vs[0]})
	}
	return fields, nil
}

type Signer struct {
	key *rsa.PrivateKey
}

func NewSigner(key *rsa.PrivateKey) *Signer {
	return &Signer{key: key}
}

// Sign returns base64(RSASSA-PKCS1-v1_5(SHA-256(canonical))).
func (s *Signer) Sign(canonical string) (string, error) {
	digest := sha256.Sum256([]byte(canonical))
	sig, err := rsa.SignPKCS1v15(rand.Reader, s.key, crypto.SHA256, digest[:])
	if err != nil {
		return "", fmt.Errorf("sign checkout fields: %w", err)
	}
	return base64.StdEncoding.EncodeToString(sig), nil
}

func verify(pub *rsa.PublicKey, canonical, signature string) error {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return ErrInvalidSignature
	}
	digest := sha256.Sum256([]byte(canonical))
	if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, digest[:], sig); err != nil {
		return ErrInvalidSignature
	}
	return nil
}

// LoadPrivateKey reads a PEM encoded PKCS#1 or PKCS#8 RSA private key.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	return ParsePrivateKey(data)
}

func ParsePrivateKey(data []byte) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("private key: no PEM block")
	}
	if key, err := x509.ParsePKCS1PrivateKey(block.Bytes); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("private key: %w", err)
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("private key: not RSA")
	}
	return key, nil
}

// LoadPublicKey reads the provider's PEM certificate or PKIX public key.
func LoadPublicKey(path string) (*rsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider certificate: %w", err)
	}
	return ParsePublicKey(data)
}

func ParsePublicKey(data []byte) (*rsa.PublicKey, error) {
	block, _ := pem.Decode(data)
	if block == nil {
		return nil, errors.New("provider certificate: no PEM block")
	}

	var pub any
	switch block.Type {
	case "CERTIFICATE":
		cert, err := x509.ParseCertificate(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("provider certificate: %w", err)
		}
		pub = cert.PublicKey
	default:
		parsed, err := x509.ParsePKIXPublicKey(block.Bytes)
		if err != nil {
			return nil, fmt.Errorf("provider public key: %w", err)
		}
		pub = parsed
	}

	key, ok := pub.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("provider certificate: not an RSA key")
	}
	return key, nil
}
