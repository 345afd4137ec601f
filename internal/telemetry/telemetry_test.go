package telemetry

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func feed(o Observer) {
	o.OnNodeDetails(models.Node{Address: "10.1.0.10", Role: models.RoleSensor, SensorValue: 4})
	o.OnNodeDetails(models.Node{Address: "10.1.0.1", Role: models.RoleSink})
	o.OnNodeDetails(models.Node{Address: "10.1.0.2", Role: models.RoleSensor, SensorValue: 3})
	o.OnHandshake(models.HandshakeEvent{At: 400 * time.Millisecond, From: "10.1.0.2", KeySize: 87})
	o.OnSend(models.TransferEvent{At: 3 * time.Second, Direction: models.Sent, OnionID: 1, Node: "10.1.0.1", Peer: "10.1.0.2", PacketSize: 120})
	o.OnReceive(models.TransferEvent{At: 2 * time.Second, Direction: models.Received, OnionID: 1, Node: "10.1.0.2", Peer: "10.1.0.1", PacketSize: 120})
	o.OnSend(models.TransferEvent{At: 2 * time.Second, Direction: models.Sent, OnionID: 1, Node: "10.1.0.2", Peer: "10.1.0.1", PacketSize: 70})
	o.OnAbort(models.AbortEvent{At: 103 * time.Second, OnionID: 1, HopCount: 2, ArmedBy: "10.1.0.2"})
	o.OnComplete(models.CompletionEvent{At: 4 * time.Second, OnionID: 2, PathLength: 1, Elapsed: time.Second, Aggregate: int32p(7), ExpectedAggregate: int32p(7)})
}

func int32p(v int32) *int32 { return &v }

func TestRecorderCountsPerNode(t *testing.T) {
	r := NewRecorder()
	feed(r)

	nodes := r.Nodes()
	require.Len(t, nodes, 3)
	assert.Equal(t, []string{"10.1.0.1", "10.1.0.2", "10.1.0.10"}, []string{nodes[0].Address, nodes[1].Address, nodes[2].Address})

	counters := r.Counters()
	assert.Equal(t, NodeCounters{Sent: 1, BytesSent: 120}, counters["10.1.0.1"])
	assert.Equal(t, NodeCounters{Sent: 1, Received: 1, BytesSent: 70, BytesReceived: 120, Aborts: 1}, counters["10.1.0.2"])
	assert.Len(t, r.Transfers(), 3)
	assert.Len(t, r.Handshakes(), 1)
	assert.Len(t, r.Completions(), 1)
}

func TestWriteCSVOrdersByTime(t *testing.T) {
	r := NewRecorder()
	feed(r)
	dir := t.TempDir()
	require.NoError(t, r.WriteCSV(dir))

	f, err := os.Open(filepath.Join(dir, TransfersFile))
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "time_s", rows[0][0])
	// the two events at 2s keep the order they were recorded in
	assert.Equal(t, []string{"received", "sent", "sent"}, []string{rows[1][1], rows[2][1], rows[3][1]})
	assert.Equal(t, "10.1.0.2", rows[2][3])
	assert.Equal(t, "3.000000", rows[3][0])

	for _, name := range []string{NodesFile, HandshakesFile, AbortsFile, CompletionsFile} {
		_, err := os.Stat(filepath.Join(dir, name))
		assert.NoError(t, err, name)
	}
}

func TestSortStableKeepsTiesInOrder(t *testing.T) {
	type item struct{ key, order int }
	items := make([]item, 200)
	for i := range items {
		items[i] = item{key: (i * 37) % 5, order: i}
	}
	sortStable(len(items), func(i, k int) bool { return items[i].key < items[k].key }, func(i, k int) {
		items[i], items[k] = items[k], items[i]
	})
	for i := 1; i < len(items); i++ {
		require.LessOrEqual(t, items[i-1].key, items[i].key)
		if items[i-1].key == items[i].key {
			require.Less(t, items[i-1].order, items[i].order)
		}
	}
}

func TestMultiFansOut(t *testing.T) {
	a, b := NewRecorder(), NewRecorder()
	feed(Multi{a, Nop{}, b})
	assert.Equal(t, a.Counters(), b.Counters())
	assert.Len(t, b.Aborts(), 1)
}

func TestPrometheusObserver(t *testing.T) {
	before := testutil.ToFloat64(collectors[ONIONS_ABORTED])
	feed(PrometheusObserver{})
	assert.Equal(t, before+1, testutil.ToFloat64(collectors[ONIONS_ABORTED]))
	assert.Equal(t, float64(1), testutil.ToFloat64(collectors[ONIONS_SENT].(*prometheus.CounterVec).WithLabelValues("10.1.0.2")))
}

func TestStatusHandler(t *testing.T) {
	r := NewRecorder()
	feed(r)
	rec := httptest.NewRecorder()
	StatusHandler(r).ServeHTTP(rec, httptest.NewRequest("GET", "/status", nil))

	var status struct {
		Nodes       map[string]NodeCounters `json:"nodes"`
		Completions int                     `json:"completions"`
		Aborts      int                     `json:"aborts"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, 1, status.Completions)
	assert.Equal(t, 1, status.Aborts)
	assert.Equal(t, 70, status.Nodes["10.1.0.2"].BytesSent)
}

type fakeChannel struct {
	published []amqp.Publishing
	err       error
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.published = append(c.published, msg)
	return c.err
}

func TestAMQPObserverPublishesJSON(t *testing.T) {
	ch := &fakeChannel{}
	runID := uuid.New()
	o := newAMQPObserver(context.Background(), ch, "wsn.events", runID)
	feed(o)

	require.Len(t, ch.published, 9)
	abort := ch.published[7]
	assert.Equal(t, EventAbort, abort.Type)
	assert.Equal(t, runID.String(), abort.AppId)
	_, err := uuid.Parse(abort.MessageId)
	assert.NoError(t, err)

	var event models.AbortEvent
	require.NoError(t, json.Unmarshal(abort.Body, &event))
	assert.Equal(t, "10.1.0.2", event.ArmedBy)
	assert.Zero(t, o.Failed())

	ch.err = errors.New("channel closed")
	o.OnAbort(models.AbortEvent{})
	assert.Equal(t, 1, o.Failed())
}

type memoryRepository struct {
	transfers []models.TransferEvent
	err       error
}

func (m *memoryRepository) SaveNode(context.Context, models.Node) error { return m.err }
func (m *memoryRepository) SaveHandshake(context.Context, models.HandshakeEvent) error {
	return m.err
}
func (m *memoryRepository) SaveTransfer(_ context.Context, e models.TransferEvent) error {
	m.transfers = append(m.transfers, e)
	return m.err
}
func (m *memoryRepository) SaveAbort(context.Context, models.AbortEvent) error { return m.err }
func (m *memoryRepository) SaveCompletion(context.Context, models.CompletionEvent) error {
	return m.err
}

func TestRepositoryObserver(t *testing.T) {
	repo := &memoryRepository{}
	o := NewRepositoryObserver(context.Background(), repo)
	feed(o)
	assert.Len(t, repo.transfers, 3)
	assert.Zero(t, o.Failed())

	repo.err = errors.New("db down")
	feed(o)
	assert.Equal(t, 9, o.Failed())
}
