package segment

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/network"
	"github.com/HannahMarsh/onion-routing-wsn/internal/sim"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	chunks []network.Chunk
	froms  []network.Endpoint
	sent   []network.Chunk
	closed bool
}

func (c *fakeConn) push(from string, data []byte, total int) {
	var tag *network.SegmentTag
	if total > 0 {
		tag = &network.SegmentTag{TotalLength: uint32(total)}
	}
	c.chunks = append(c.chunks, network.Chunk{Data: data, Tag: tag})
	c.froms = append(c.froms, network.Endpoint{Addr: network.MustParseAddress(from), Port: 49152})
}

func (c *fakeConn) Send(data []byte, tag *network.SegmentTag) error {
	c.sent = append(c.sent, network.Chunk{Data: data, Tag: tag})
	return nil
}

func (c *fakeConn) Recv() (network.Chunk, network.Endpoint, bool) {
	if len(c.chunks) == 0 {
		return network.Chunk{}, network.Endpoint{}, false
	}
	chunk, from := c.chunks[0], c.froms[0]
	c.chunks, c.froms = c.chunks[1:], c.froms[1:]
	return chunk, from, true
}

func (c *fakeConn) SetRecvCallback(func(network.Conn)) {}
func (c *fakeConn) LocalEndpoint() network.Endpoint    { return network.Endpoint{} }
func (c *fakeConn) RemoteEndpoint() network.Endpoint   { return network.Endpoint{} }
func (c *fakeConn) Close() error {
	c.closed = true
	return nil
}

func TestSendTagsOnlyLongMessages(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, Send(conn, make([]byte, 536), 536))
	require.NoError(t, Send(conn, make([]byte, 537), 536))

	require.Len(t, conn.sent, 2)
	assert.Nil(t, conn.sent[0].Tag)
	require.NotNil(t, conn.sent[1].Tag)
	assert.Equal(t, uint32(537), conn.sent[1].Tag.TotalLength)
}

func TestReceiveUntaggedChunkIsWholeMessage(t *testing.T) {
	r := NewReassembler()
	conn := &fakeConn{}
	conn.push("10.1.0.2", []byte("tiny"), 0)

	msg, from, complete, err := r.Receive(conn)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, []byte("tiny"), msg)
	assert.Equal(t, "10.1.0.2", from.Addr.String())
	assert.True(t, conn.closed)
	assert.False(t, r.InProgress())
}

func TestReceive1200BytesAt536MSS(t *testing.T) {
	r := NewReassembler()
	conn := &fakeConn{}
	data := make([]byte, 1200)
	for i := range data {
		data[i] = byte(i * 7)
	}
	conn.push("10.1.0.3", data[:536], 1200)
	conn.push("10.1.0.3", data[536:1072], 1200)
	conn.push("10.1.0.3", data[1072:], 1200)

	for i := 0; i < 2; i++ {
		msg, _, complete, err := r.Receive(conn)
		require.NoError(t, err)
		assert.False(t, complete)
		assert.Nil(t, msg)
		assert.True(t, r.InProgress())
		assert.False(t, conn.closed)
	}
	msg, _, complete, err := r.Receive(conn)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, data, msg)
	assert.False(t, r.InProgress())
	assert.True(t, conn.closed)
}

func TestReceivePeerSwitchDiscardsPartialMessage(t *testing.T) {
	r := NewReassembler()
	conn := &fakeConn{}
	conn.push("10.1.0.4", make([]byte, 100), 300)
	conn.push("10.1.0.5", []byte("abcdefghij"), 20)
	conn.push("10.1.0.5", []byte("klmnopqrst"), 20)

	_, _, complete, err := r.Receive(conn)
	require.NoError(t, err)
	require.False(t, complete)

	_, _, complete, err = r.Receive(conn)
	require.NoError(t, err)
	require.False(t, complete)

	msg, from, complete, err := r.Receive(conn)
	require.NoError(t, err)
	assert.True(t, complete)
	assert.Equal(t, []byte("abcdefghijklmnopqrst"), msg)
	assert.Equal(t, "10.1.0.5", from.Addr.String())
}

func TestReceiveOverrunResetsBuffer(t *testing.T) {
	r := NewReassembler()
	conn := &fakeConn{}
	conn.push("10.1.0.6", make([]byte, 10), 12)
	conn.push("10.1.0.6", make([]byte, 10), 12)

	_, _, _, err := r.Receive(conn)
	require.NoError(t, err)
	_, _, complete, err := r.Receive(conn)
	assert.False(t, complete)
	assert.True(t, errors.Is(err, ErrSegmentOverrun))
	assert.False(t, r.InProgress())
}

func TestReceiveEmptyConn(t *testing.T) {
	msg, _, complete, err := NewReassembler().Receive(&fakeConn{})
	assert.NoError(t, err)
	assert.False(t, complete)
	assert.Nil(t, msg)
}

func TestRoundTripOverSimNetwork(t *testing.T) {
	sizes := []int{0, 1, 48, 535, 536, 537, 1072, 1200, 5000}
	for _, mss := range []int{16, 100, 536, 1400} {
		for _, size := range sizes {
			t.Run(fmt.Sprintf("mss=%d/size=%d", mss, size), func(t *testing.T) {
				s := sim.NewScheduler()
				n, err := network.NewSimNetwork(s, network.SimConfig{MSS: mss})
				require.NoError(t, err)

				sink := network.Endpoint{Addr: network.MustParseAddress("10.1.0.1"), Port: 4242}
				r := NewReassembler()
				var got [][]byte
				_, err = n.Listen(sink, func(c network.Conn) {
					c.SetRecvCallback(func(c network.Conn) {
						msg, _, complete, err := r.Receive(c)
						require.NoError(t, err)
						if complete {
							got = append(got, msg)
						}
					})
				})
				require.NoError(t, err)

				data := make([]byte, size)
				for i := range data {
					data[i] = byte(i % 251)
				}
				conn, err := n.Dial(network.MustParseAddress("10.1.0.9"), sink)
				require.NoError(t, err)
				require.NoError(t, Send(conn, data, mss))
				require.NoError(t, conn.Close())
				require.NoError(t, s.Run(context.Background(), 0))

				require.Len(t, got, 1)
				assert.Equal(t, len(data), len(got[0]))
				assert.Equal(t, data, append([]byte{}, got[0]...))
			})
		}
	}
}

func TestLossyNetworkNeverSplicesMessages(t *testing.T) {
	s := sim.NewScheduler()
	n, err := network.NewSimNetwork(s, network.SimConfig{MSS: 536, Latency: time.Millisecond, BytesPerSecond: 250000, DropProbability: 0.25, Seed: 3})
	require.NoError(t, err)

	sink := network.Endpoint{Addr: network.MustParseAddress("10.1.0.1"), Port: 4242}
	r := NewReassembler()
	var got [][]byte
	_, err = n.Listen(sink, func(c network.Conn) {
		c.SetRecvCallback(func(c network.Conn) {
			msg, _, complete, err := r.Receive(c)
			require.NoError(t, err)
			if complete {
				got = append(got, append([]byte{}, msg...))
			}
		})
	})
	require.NoError(t, err)

	conn, err := n.Dial(network.MustParseAddress("10.1.0.7"), sink)
	require.NoError(t, err)
	const messages = 30
	for k := 1; k <= messages; k++ {
		data := make([]byte, 1200)
		for i := range data {
			data[i] = byte(k)
		}
		require.NoError(t, Send(conn, data, 536))
	}
	require.NoError(t, s.Run(context.Background(), 0))

	require.NotEmpty(t, got)
	assert.Less(t, len(got), messages)
	assert.False(t, r.InProgress())
	last := byte(0)
	for _, msg := range got {
		require.Len(t, msg, 1200)
		for _, b := range msg {
			require.Equal(t, msg[0], b, "message %d spliced with another", msg[0])
		}
		assert.Greater(t, msg[0], last)
		last = msg[0]
	}
}
