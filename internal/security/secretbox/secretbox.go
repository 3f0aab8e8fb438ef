// Package secretbox cifra payloads con AES-256-GCM.
//
// Se usa para sellar los payloads de sesión de interacción antes de
// guardarlos en el cache compartido (redis): un dump del backend no expone
// scopes pedidos ni subjects. Formato: base64(nonce)|base64(ciphertext).
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
)

const (
	nonceSizeGCM      = 12  // AES-GCM nonce recomendado (96 bits)
	requiredKeyLength = 32  // 32 bytes => AES-256
	sep               = "|" // nonce|ciphertext (ambos en base64)
)

var errBadFormat = errors.New("secretbox: formato inválido, esperado base64(nonce)|base64(ciphertext)")

// Box sella y abre payloads con una clave fija.
// La clave se inyecta (config), no se lee de estado global.
type Box struct {
	key []byte
}

// New crea un Box desde una clave en base64 (std o raw).
// Genere una con: openssl rand -base64 32
func New(keyB64 string) (*Box, error) {
	keyB64 = strings.TrimSpace(keyB64)
	if keyB64 == "" {
		return nil, errors.New("secretbox: clave vacía")
	}
	k, err := base64.StdEncoding.DecodeString(keyB64)
	if err != nil {
		if k, err = base64.RawStdEncoding.DecodeString(keyB64); err != nil {
			return nil, fmt.Errorf("secretbox: decode key: %w", err)
		}
	}
	if len(k) != requiredKeyLength {
		return nil, fmt.Errorf("secretbox: la clave debe decodificar a %d bytes, obtuvo %d", requiredKeyLength, len(k))
	}
	key := make([]byte, requiredKeyLength)
	copy(key, k)
	return &Box{key: key}, nil
}

// Seal cifra plain y devuelve base64(nonce)|base64(ciphertext).
func (b *Box) Seal(plain []byte) (string, error) {
	aesgcm, err := b.gcm()
	if err != nil {
		return "", err
	}
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("secretbox: nonce random: %w", err)
	}
	ct := aesgcm.Seal(nil, nonce, plain, nil)
	return base64.StdEncoding.EncodeToString(nonce) + sep + base64.StdEncoding.EncodeToString(ct), nil
}

// Open descifra un payload sellado por Seal.
func (b *Box) Open(sealed string) ([]byte, error) {
	parts := strings.Split(sealed, sep)
	if len(parts) != 2 {
		return nil, errBadFormat
	}
	nonce, err := base64.StdEncoding.DecodeString(parts[0])
	if err != nil {
		return nil, fmt.Errorf("secretbox: decode nonce: %w", err)
	}
	ct, err := base64.StdEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("secretbox: decode ciphertext: %w", err)
	}
	if len(nonce) != nonceSizeGCM {
		return nil, fmt.Errorf("secretbox: nonce inválido: esperado %d bytes, obtuvo %d", nonceSizeGCM, len(nonce))
	}
	aesgcm, err := b.gcm()
	if err != nil {
		return nil, err
	}
	pt, err := aesgcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, fmt.Errorf("secretbox: open: %w", err)
	}
	return pt, nil
}

func (b *Box) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, fmt.Errorf("secretbox: aes.NewCipher: %w", err)
	}
	return cipher.NewGCM(block)
}
