package encryption

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
)

// ErrShortCiphertext is returned when the stored object is smaller than a nonce.
var ErrShortCiphertext = errors.New("aesgcm: invalid ciphertext (too short)")

// newAEAD derives a 32-byte key from passphrase with SHA-256.
func newAEAD(passphrase string) (cipher.AEAD, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("aesgcm: missing key")
	}

	key := sha256.Sum256([]byte(passphrase))
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, fmt.Errorf("aesgcm: new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("aesgcm: new GCM: %w", err)
	}
	return aead, nil
}

// AESGCMEncrypt seals the whole input as one GCM message laid out as
// nonce || ciphertext. GCM authenticates the full message, so the input is
// buffered; sealing happens on the first Read.
type AESGCMEncrypt struct {
	Key string
}

func (a *AESGCMEncrypt) Name() string { return "aesgcm-encrypt" }

func (a *AESGCMEncrypt) Apply(reader io.Reader) (io.Reader, io.Closer, error) {
	aead, err := newAEAD(a.Key)
	if err != nil {
		return nil, nil, err
	}
	return &sealReader{aead: aead, src: reader}, nil, nil
}

type sealReader struct {
	aead cipher.AEAD
	src  io.Reader
	out  *bytes.Reader
}

func (s *sealReader) Read(p []byte) (int, error) {
	if s.out == nil {
		plain, err := io.ReadAll(s.src)
		if err != nil {
			return 0, fmt.Errorf("aesgcm: read input: %w", err)
		}

		nonce := make([]byte, s.aead.NonceSize(), s.aead.NonceSize()+len(plain)+s.aead.Overhead())
		if _, err := rand.Read(nonce); err != nil {
			return 0, fmt.Errorf("aesgcm: nonce: %w", err)
		}
		s.out = bytes.NewReader(s.aead.Seal(nonce, nonce, plain, nil))
	}
	return s.out.Read(p)
}

type AESGCMDecrypt struct {
	Key string
}

func (AESGCMDecrypt) Name() string { return "aesgcm-decrypt" }

func (t AESGCMDecrypt) Apply(rc io.ReadCloser) (io.ReadCloser, error) {
	defer rc.Close()

	aead, err := newAEAD(t.Key)
	if err != nil {
		return nil, err
	}

	sealed, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("aesgcm: read input: %w", err)
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrShortCiphertext
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plain, err := aead.Open(ciphertext[:0], nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("aesgcm: decryption failed: %w", err)
	}

	return io.NopCloser(bytes.NewReader(plain)), nil
}
