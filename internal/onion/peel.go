package onion

import (
	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/box"
)

// ErrMalformedLayer is returned when a layer cannot be opened with the node's key.
var ErrMalformedLayer = errors.New("onion: malformed layer")

// PeeledLayer is one opened layer. It is only valid until the caller re-mounts the head.
type PeeledLayer struct {
	NextHop    [4]byte
	InnerLayer []byte
}

func (l PeeledLayer) NextHopAddress() network.Address {
	addr, _ := network.AddressFromBytes(l.NextHop[:])
	return addr
}

// PeelOneLayer opens the outermost layer of ciphertext.
func (m *Manager) PeelOneLayer(ciphertext []byte) (PeeledLayer, error) {
	if m.keys == nil {
		return PeeledLayer{}, errors.New("onion.PeelOneLayer(): no key pair")
	}
	plaintext, ok := box.OpenAnonymous(nil, ciphertext, m.keys.Public, m.keys.private)
	if !ok {
		return PeeledLayer{}, errors.Wrapf(ErrMalformedLayer, "cannot open %d bytes", len(ciphertext))
	}
	if len(plaintext) < 4 {
		return PeeledLayer{}, errors.Wrapf(ErrMalformedLayer, "layer of %d bytes has no next hop", len(plaintext))
	}
	var layer PeeledLayer
	copy(layer.NextHop[:], plaintext[:4])
	layer.InnerLayer = plaintext[4:]
	return layer, nil
}
