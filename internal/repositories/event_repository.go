package repositories

import (
	"context"
	"database/sql"
	_ "embed"
	"time"

	"github.com/HannahMarsh/onion-routing-wsn/internal/domain/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
)

//go:embed sql/schema.sql
var schema string

// EventRepositoryImpl stores the events of one run in Postgres.
type EventRepositoryImpl struct {
	queries *Queries
	runID   uuid.UUID
}

// Open connects to dsn and makes sure the schema exists.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "repositories.Open(): failed to open database")
	}
	if err = db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "repositories.Open(): failed to reach database")
	}
	if _, err = db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "repositories.Open(): failed to create schema")
	}
	return db, nil
}

// NewEventRepository registers a run and returns a repository writing to it.
func NewEventRepository(ctx context.Context, db DBTX, runID uuid.UUID, description string) (*EventRepositoryImpl, error) {
	q := New(db)
	if err := q.InsertRun(ctx, InsertRunParams{ID: runID, Description: description}); err != nil {
		return nil, errors.Wrapf(err, "repositories.NewEventRepository(): failed to insert run %s", runID)
	}
	return &EventRepositoryImpl{queries: q, runID: runID}, nil
}

func (repo *EventRepositoryImpl) RunID() uuid.UUID {
	return repo.runID
}

func (repo *EventRepositoryImpl) SaveNode(ctx context.Context, node models.Node) error {
	return errors.Wrap(repo.queries.InsertNode(ctx, InsertNodeParams{
		RunID:       repo.runID,
		Address:     node.Address,
		Role:        node.Role,
		X:           node.X,
		Y:           node.Y,
		SensorValue: node.SensorValue,
	}), "repositories.SaveNode()")
}

func (repo *EventRepositoryImpl) SaveHandshake(ctx context.Context, event models.HandshakeEvent) error {
	return errors.Wrap(repo.queries.InsertHandshake(ctx, InsertHandshakeParams{
		RunID:   repo.runID,
		AtNs:    nanos(event.At),
		Sender:  event.From,
		KeySize: int32(event.KeySize),
	}), "repositories.SaveHandshake()")
}

func (repo *EventRepositoryImpl) SaveTransfer(ctx context.Context, event models.TransferEvent) error {
	return errors.Wrap(repo.queries.InsertTransfer(ctx, InsertTransferParams{
		RunID:      repo.runID,
		AtNs:       nanos(event.At),
		Direction:  event.Direction,
		OnionID:    int64(event.OnionID),
		Node:       event.Node,
		Peer:       event.Peer,
		PacketSize: int32(event.PacketSize),
		HeadSize:   int32(event.HeadSize),
		BodySize:   int32(event.BodySize),
	}), "repositories.SaveTransfer()")
}

func (repo *EventRepositoryImpl) SaveAbort(ctx context.Context, event models.AbortEvent) error {
	return errors.Wrap(repo.queries.InsertAbort(ctx, InsertAbortParams{
		RunID:    repo.runID,
		AtNs:     nanos(event.At),
		OnionID:  int64(event.OnionID),
		HopCount: int32(event.HopCount),
		ArmedBy:  event.ArmedBy,
	}), "repositories.SaveAbort()")
}

func (repo *EventRepositoryImpl) SaveCompletion(ctx context.Context, event models.CompletionEvent) error {
	return errors.Wrap(repo.queries.InsertCompletion(ctx, InsertCompletionParams{
		RunID:             repo.runID,
		AtNs:              nanos(event.At),
		OnionID:           int64(event.OnionID),
		PathLength:        int32(event.PathLength),
		ElapsedNs:         nanos(event.Elapsed),
		Aggregate:         nullInt32(event.Aggregate),
		ExpectedAggregate: nullInt32(event.ExpectedAggregate),
	}), "repositories.SaveCompletion()")
}

func nanos(d time.Duration) int64 {
	return int64(d)
}

func nullInt32(v *int32) sql.NullInt32 {
	if v == nil {
		return sql.NullInt32{}
	}
	return sql.NullInt32{Int32: *v, Valid: true}
}
