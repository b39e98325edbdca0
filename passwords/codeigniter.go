package passwords

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha512"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

const hmacHexLen = sha512.Size * 2

var errShortKey = errors.New("legacy key shorter than 16 bytes")

// CodeIgniterVerifier checks blobs written by the CodeIgniter 3 Encryption
// library: hex(HMAC-SHA512) followed by base64(IV || AES-CBC ciphertext),
// with both keys derived from the application key through HKDF-SHA512.
// The PHP application still decrypts these values, so they are never
// rewritten.
type CodeIgniterVerifier struct {
	hmacKey []byte
	encKey  []byte
}

func NewCodeIgniterVerifier(key []byte) *CodeIgniterVerifier {
	return &CodeIgniterVerifier{
		hmacKey: deriveKey(key, sha512.Size, "authentication"),
		encKey:  deriveKey(key, len(key), "encryption"),
	}
}

func (*CodeIgniterVerifier) Name() string     { return "codeigniter" }
func (*CodeIgniterVerifier) Upgradable() bool { return false }

func (v *CodeIgniterVerifier) Verify(stored, plain string) Result {
	if len(stored) <= hmacHexLen {
		return Malformed
	}
	digest, payload := stored[:hmacHexLen], stored[hmacHexLen:]

	mac := hmac.New(sha512.New, v.hmacKey)
	mac.Write([]byte(payload))
	expected := hex.EncodeToString(mac.Sum(nil))
	if subtle.ConstantTimeCompare([]byte(digest), []byte(expected)) != 1 {
		// a salted sha512 hash has the same shape; let it try
		return Malformed
	}

	decrypted, err := v.decrypt(payload)
	if err != nil {
		return NoMatch
	}
	if subtle.ConstantTimeCompare(decrypted, []byte(plain)) == 1 {
		return Match
	}
	return NoMatch
}

func (v *CodeIgniterVerifier) decrypt(payload string) ([]byte, error) {
	block, err := newBlock(v.encKey)
	if err != nil {
		return nil, err
	}

	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, err
	}
	if len(raw) < 2*aes.BlockSize || len(raw)%aes.BlockSize != 0 {
		return nil, errors.New("ciphertext length")
	}

	iv, ct := raw[:aes.BlockSize], raw[aes.BlockSize:]
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	return pkcs7Unpad(out)
}

// Encrypt produces a blob in the same format. Only tests call it.
func Encrypt(key []byte, plain string) (string, error) {
	block, err := newBlock(deriveKey(key, len(key), "encryption"))
	if err != nil {
		return "", err
	}

	padded := pkcs7Pad([]byte(plain))
	raw := make([]byte, aes.BlockSize+len(padded))
	iv := raw[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", err
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(raw[aes.BlockSize:], padded)

	payload := base64.StdEncoding.EncodeToString(raw)
	mac := hmac.New(sha512.New, deriveKey(key, sha512.Size, "authentication"))
	mac.Write([]byte(payload))
	return hex.EncodeToString(mac.Sum(nil)) + payload, nil
}

func deriveKey(secret []byte, length int, info string) []byte {
	if length <= 0 {
		return nil
	}
	salt := make([]byte, sha512.Size)
	out := make([]byte, length)
	if _, err := io.ReadFull(hkdf.New(sha512.New, secret, salt, []byte(info)), out); err != nil {
		return nil
	}
	return out
}

// newBlock picks AES-256, -192 or -128 from the derived key length, using
// the leading bytes like openssl does.
func newBlock(key []byte) (cipher.Block, error) {
	switch {
	case len(key) >= 32:
		return aes.NewCipher(key[:32])
	case len(key) >= 24:
		return aes.NewCipher(key[:24])
	case len(key) >= 16:
		return aes.NewCipher(key[:16])
	}
	return nil, errShortKey
}

func pkcs7Pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func pkcs7Unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, errors.New("empty plaintext")
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, errors.New("bad padding")
	}
	for _, p := range b[len(b)-n:] {
		if int(p) != n {
			return nil, errors.New("bad padding")
		}
	}
	return b[:len(b)-n], nil
}
