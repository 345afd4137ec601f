// Package onion builds and peels the layered encryption carried in an onion head.
// Each layer is an anonymous sealed box (X25519, XSalsa20-Poly1305) addressed to
// one hop, holding the next hop's address followed by the next layer.
package onion

import (
	"crypto/rand"
	"encoding/pem"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/box"
)

const publicKeyPEMType = "X25519 PUBLIC KEY"

// KeyManager is everything a node needs from its key material.
type KeyManager interface {
	GenerateKeyPair() error
	PublicKeyToString() []byte
	PeelOneLayer(ciphertext []byte) (PeeledLayer, error)
}

// KeyPair is a node's key material. The private half never leaves the node.
type KeyPair struct {
	Public  *[32]byte
	private *[32]byte
}

// Manager is the sealed-box KeyManager.
type Manager struct {
	random io.Reader
	keys   *KeyPair
}

// NewManager returns a Manager drawing key material from random, or from
// crypto/rand when random is nil.
func NewManager(random io.Reader) *Manager {
	if random == nil {
		random = rand.Reader
	}
	return &Manager{random: random}
}

// GenerateKeyPair creates the key pair. Calling it again is an error; keys are never rotated.
func (m *Manager) GenerateKeyPair() error {
	if m.keys != nil {
		return errors.New("onion.GenerateKeyPair(): key pair already generated")
	}
	pub, priv, err := box.GenerateKey(m.random)
	if err != nil {
		return errors.Wrap(err, "onion.GenerateKeyPair(): failed to generate key pair")
	}
	m.keys = &KeyPair{Public: pub, private: priv}
	return nil
}

func (m *Manager) KeyPair() *KeyPair {
	return m.keys
}

// PublicKeyToString returns the PEM encoding of the public key, or nil before
// GenerateKeyPair.
func (m *Manager) PublicKeyToString() []byte {
	if m.keys == nil {
		return nil
	}
	return EncodePublicKey(m.keys.Public)
}

func EncodePublicKey(pub *[32]byte) []byte {
	return pem.EncodeToMemory(&pem.Block{Type: publicKeyPEMType, Bytes: pub[:]})
}

func DecodePublicKey(data []byte) (*[32]byte, error) {
	block, _ := pem.Decode(data)
	if block == nil || block.Type != publicKeyPEMType {
		return nil, errors.New("onion.DecodePublicKey(): not a PEM encoded public key")
	}
	if len(block.Bytes) != 32 {
		return nil, errors.Errorf("onion.DecodePublicKey(): key is %d bytes, want 32", len(block.Bytes))
	}
	var pub [32]byte
	copy(pub[:], block.Bytes)
	return &pub, nil
}
