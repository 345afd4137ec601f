package onion

import (
	"crypto/rand"
	"io"

	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/pkg/errors"
	"golang.org/x/crypto/nacl/box"
)

// LayerOverhead is how many bytes each layer adds: the next hop plus the sealed box.
const LayerOverhead = 4 + box.AnonymousOverhead

// Hop is one sensor on an onion's path.
type Hop struct {
	Address   network.Address
	PublicKey *[32]byte
}

// FormOnion builds the layers for path so that the last hop forwards to destination.
// The returned ciphertext is sent to path[0].
func FormOnion(path []Hop, destination network.Address) ([]byte, error) {
	return formOnion(path, destination, rand.Reader)
}

func formOnion(path []Hop, destination network.Address, random io.Reader) ([]byte, error) {
	if len(path) == 0 {
		return nil, errors.New("onion.FormOnion(): empty path")
	}
	var inner []byte
	next := destination
	for i := len(path) - 1; i >= 0; i-- {
		if path[i].PublicKey == nil {
			return nil, errors.Errorf("onion.FormOnion(): no public key for hop %d (%s)", i, path[i].Address)
		}
		addr := next.Bytes()
		plaintext := make([]byte, 0, 4+len(inner))
		plaintext = append(plaintext, addr[:]...)
		plaintext = append(plaintext, inner...)

		sealed, err := box.SealAnonymous(nil, plaintext, path[i].PublicKey, random)
		if err != nil {
			return nil, errors.Wrapf(err, "onion.FormOnion(): failed to seal layer %d", i)
		}
		inner = sealed
		next = path[i].Address
	}
	return inner, nil
}

// Size is the length of an onion over pathLength hops.
func Size(pathLength int) int {
	return pathLength * LayerOverhead
}
