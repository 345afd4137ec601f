package repositories

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type execCall struct {
	query string
	args  []interface{}
}

type recordingDB struct {
	calls []execCall
	err   error
}

func (db *recordingDB) ExecContext(_ context.Context, query string, args ...interface{}) (sql.Result, error) {
	db.calls = append(db.calls, execCall{query: query, args: args})
	return nil, db.err
}

func (db *recordingDB) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, errors.New("not supported")
}

func (db *recordingDB) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("not supported")
}

func (db *recordingDB) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func TestEventRepositoryWritesRunScopedRows(t *testing.T) {
	db := &recordingDB{}
	runID := uuid.New()
	repo, err := NewEventRepository(context.Background(), db, runID, "grid 16 nodes")
	require.NoError(t, err)
	assert.Equal(t, runID, repo.RunID())

	ctx := context.Background()
	require.NoError(t, repo.SaveNode(ctx, models.Node{Address: "10.1.0.2", Role: models.RoleSensor, X: 1, Y: 2, SensorValue: 7}))
	require.NoError(t, repo.SaveTransfer(ctx, models.TransferEvent{At: time.Second, Direction: models.Sent, OnionID: 3, Node: "10.1.0.1", Peer: "10.1.0.2", PacketSize: 200}))
	require.NoError(t, repo.SaveCompletion(ctx, models.CompletionEvent{At: 2 * time.Second, OnionID: 3, PathLength: 1}))

	require.Len(t, db.calls, 4)
	assert.True(t, strings.Contains(db.calls[0].query, "InsertRun"))
	assert.Equal(t, []interface{}{runID, "grid 16 nodes"}, db.calls[0].args)
	for _, c := range db.calls[1:] {
		assert.Equal(t, runID, c.args[0])
	}
	assert.Equal(t, int64(time.Second), db.calls[2].args[1])

	completion := db.calls[3].args
	assert.Equal(t, sql.NullInt32{}, completion[5])
	assert.Equal(t, sql.NullInt32{}, completion[6])
}

func TestEventRepositoryWrapsErrors(t *testing.T) {
	db := &recordingDB{}
	repo, err := NewEventRepository(context.Background(), db, uuid.New(), "")
	require.NoError(t, err)

	db.err = errors.New("connection reset")
	err = repo.SaveAbort(context.Background(), models.AbortEvent{OnionID: 1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "repositories.SaveAbort()")
	assert.Contains(t, err.Error(), "connection reset")

	_, err = NewEventRepository(context.Background(), db, uuid.New(), "")
	assert.Error(t, err)
}

func TestNullInt32(t *testing.T) {
	v := int32(0)
	assert.Equal(t, sql.NullInt32{Int32: 0, Valid: true}, nullInt32(&v))
	assert.False(t, nullInt32(nil).Valid)
}
