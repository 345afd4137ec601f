package network

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddressFromBytes(t *testing.T) {
	a, err := AddressFromBytes([]byte{10, 1, 0, 7})
	require.NoError(t, err)
	assert.Equal(t, Address(10<<24|1<<16|7), a)
	assert.Equal(t, "10.1.0.7", a.String())
	assert.Equal(t, [4]byte{10, 1, 0, 7}, a.Bytes())

	a, err = AddressFromBytes([]byte{0xff, 0xfe, 0x80, 0x01})
	require.NoError(t, err)
	assert.Equal(t, Address(0xfffe8001), a)

	_, err = AddressFromBytes([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("10.1.0.1")
	require.NoError(t, err)
	assert.Equal(t, "10.1.0.1", a.String())
	assert.Equal(t, "10.1.0.1:4242", Endpoint{Addr: a, Port: 4242}.String())

	_, err = ParseAddress("fe80::1")
	assert.Error(t, err)
	assert.Panics(t, func() { MustParseAddress("not an address") })
}
