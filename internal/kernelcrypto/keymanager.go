package kernelcrypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
)

// KeyManager owns an Ed25519 signing keypair persisted to disk as a
// hex-encoded private key file, mirroring the load-or-generate lifecycle
// the teacher uses for its BLS validator key.
type KeyManager struct {
	keyPath    string
	privateKey ed25519.PrivateKey
	publicKey  ed25519.PublicKey
}

// LoadOrGenerateKey loads the Ed25519 private key at path, generating and
// persisting a new one if the file does not exist.
func LoadOrGenerateKey(path string) (*KeyManager, error) {
	if _, err := os.Stat(path); err == nil {
		return LoadKey(path)
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("kernelcrypto: stat key file: %w", err)
	}
	km, err := GenerateNewKey(path)
	if err != nil {
		return nil, err
	}
	if err := km.SaveKey(); err != nil {
		return nil, err
	}
	return km, nil
}

// LoadKey reads an existing hex-encoded Ed25519 private key file.
func LoadKey(path string) (*KeyManager, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("kernelcrypto: read key file: %w", err)
	}
	raw, err := hex.DecodeString(string(trimNewline(data)))
	if err != nil {
		return nil, fmt.Errorf("kernelcrypto: decode key file: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, ErrInvalidKeySize
	}
	priv := ed25519.PrivateKey(raw)
	return &KeyManager{
		keyPath:    path,
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
	}, nil
}

// GenerateNewKey creates a fresh random Ed25519 keypair bound to path
// (not yet written to disk — call SaveKey to persist it).
func GenerateNewKey(path string) (*KeyManager, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("kernelcrypto: generate key: %w", err)
	}
	return &KeyManager{keyPath: path, privateKey: priv, publicKey: pub}, nil
}

// GenerateFromSeed derives a deterministic keypair from an arbitrary
// seed, for tests and reproducible bootstrap (e.g. genesis signers).
func GenerateFromSeed(path string, seed []byte) *KeyManager {
	sum := sha256.Sum256(seed)
	priv := ed25519.NewKeyFromSeed(sum[:])
	return &KeyManager{
		keyPath:    path,
		privateKey: priv,
		publicKey:  priv.Public().(ed25519.PublicKey),
	}
}

// SaveKey persists the private key to keyPath, hex-encoded, with a
// restrictive directory (0700) and file (0600) mode.
func (km *KeyManager) SaveKey() error {
	dir := filepath.Dir(km.keyPath)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("kernelcrypto: create key dir: %w", err)
	}
	encoded := hex.EncodeToString(km.privateKey)
	if err := os.WriteFile(km.keyPath, []byte(encoded+"\n"), 0o600); err != nil {
		return fmt.Errorf("kernelcrypto: write key file: %w", err)
	}
	return nil
}

// Sign signs msg with the managed private key.
func (km *KeyManager) Sign(msg []byte) []byte {
	return Sign(km.privateKey, msg)
}

// PublicKey returns the managed Ed25519 public key.
func (km *KeyManager) PublicKey() ed25519.PublicKey {
	return km.publicKey
}

// PublicKeyHex returns the hex-encoded public key, the form carried on
// the wire as author_pubkey / signer.
func (km *KeyManager) PublicKeyHex() string {
	return hex.EncodeToString(km.publicKey)
}

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
