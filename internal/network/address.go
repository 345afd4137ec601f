package network

import (
	"fmt"
	"net"

	"github.com/pkg/errors"
)

// Address is an IPv4 node address in host order.
type Address uint32

// Any is the unspecified address, used as "no sender" by the reassembly buffer.
const Any Address = 0

// AddressFromBytes reads a 4-byte big-endian buffer, most significant byte first.
func AddressFromBytes(buf []byte) (Address, error) {
	if len(buf) != 4 {
		return Any, errors.Errorf("network.AddressFromBytes(): need 4 bytes, got %d", len(buf))
	}
	var ip uint32
	ip += uint32(buf[0])
	ip <<= 8
	ip += uint32(buf[1])
	ip <<= 8
	ip += uint32(buf[2])
	ip <<= 8
	ip += uint32(buf[3])
	return Address(ip), nil
}

// ParseAddress parses dotted-quad notation.
func ParseAddress(s string) (Address, error) {
	ip := net.ParseIP(s).To4()
	if ip == nil {
		return Any, errors.Errorf("network.ParseAddress(): %q is not an IPv4 address", s)
	}
	return AddressFromBytes(ip)
}

func MustParseAddress(s string) Address {
	a, err := ParseAddress(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Bytes returns the big-endian encoding.
func (a Address) Bytes() [4]byte {
	return [4]byte{byte(a >> 24), byte(a >> 16), byte(a >> 8), byte(a)}
}

func (a Address) String() string {
	b := a.Bytes()
	return fmt.Sprintf("%d.%d.%d.%d", b[0], b[1], b[2], b[3])
}

// Endpoint is an address and port pair.
type Endpoint struct {
	Addr Address
	Port uint16
}

func (e Endpoint) String() string {
	return fmt.Sprintf("%s:%d", e.Addr, e.Port)
}
