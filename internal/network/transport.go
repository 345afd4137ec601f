package network

// SegmentTag carries the total length of a logical message written in one send.
// It covers every byte of that write, so each wire segment cut from it carries the tag.
type SegmentTag struct {
	TotalLength uint32
}

// Chunk is one read from a stream connection.
type Chunk struct {
	Data []byte
	Tag  *SegmentTag
}

// Conn is one side of a stream connection.
type Conn interface {
	// Send writes data as one logical write. tag may be nil.
	Send(data []byte, tag *SegmentTag) error
	// Recv returns the next buffered chunk and the sender, or false when none is buffered.
	Recv() (Chunk, Endpoint, bool)
	// SetRecvCallback registers the function invoked whenever a chunk arrives.
	SetRecvCallback(func(Conn))
	LocalEndpoint() Endpoint
	RemoteEndpoint() Endpoint
	Close() error
}

// Listener is a bound listening endpoint.
type Listener interface {
	Endpoint() Endpoint
	Close() error
}

// Transport opens listening endpoints and outbound connections.
type Transport interface {
	Listen(local Endpoint, accept func(Conn)) (Listener, error)
	Dial(from Address, remote Endpoint) (Conn, error)
	MSS() int
}

// Radio switches a node's radio off and back on.
type Radio interface {
	SetRadio(addr Address, on bool)
	RadioOn(addr Address) bool
}
