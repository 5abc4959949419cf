package worker

import (
	"Go_PanStore/internal/apperr"
	"Go_PanStore/internal/dto"
	"Go_PanStore/internal/mq"
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAcker struct {
	acks    int
	nacks   int
	requeue bool
}

func (a *fakeAcker) Ack(uint64, bool) error { a.acks++; return nil }

func (a *fakeAcker) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

func (a *fakeAcker) Reject(_ uint64, requeue bool) error {
	a.nacks++
	a.requeue = requeue
	return nil
}

type fakeSink struct {
	bodies [][]byte
	err    error
}

func (s *fakeSink) PublishDLQ(_ context.Context, body []byte) error {
	if s.err != nil {
		return s.err
	}
	s.bodies = append(s.bodies, body)
	return nil
}

func stubJobs(t *testing.T, expired func(context.Context) (*dto.SweepResult, error), bin func(context.Context, uint64) (int, error)) {
	t.Helper()
	savedExpired, savedBin := cleanupExpired, emptyBin
	if expired != nil {
		cleanupExpired = expired
	}
	if bin != nil {
		emptyBin = bin
	}
	t.Cleanup(func() { cleanupExpired, emptyBin = savedExpired, savedBin })
}

func delivery(t *testing.T, acker *fakeAcker, req interface{}) amqp.Delivery {
	t.Helper()
	body, ok := req.([]byte)
	if !ok {
		var err error
		body, err = json.Marshal(req)
		require.NoError(t, err)
	}
	return amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: body}
}

func TestProcessSweepDispatch(t *testing.T) {
	var binOwner uint64
	stubJobs(t,
		func(context.Context) (*dto.SweepResult, error) { return &dto.SweepResult{Purged: 4}, nil },
		func(_ context.Context, owner uint64) (int, error) { binOwner = owner; return 2, nil },
	)
	ctx := context.Background()

	res, err := processSweep(ctx, dto.SweepRequest{Kind: dto.SweepKindExpired})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Purged)

	res, err = processSweep(ctx, dto.SweepRequest{Kind: dto.SweepKindEmptyBin, OwnerID: 7})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Purged)
	assert.Equal(t, uint64(7), binOwner)

	_, err = processSweep(ctx, dto.SweepRequest{Kind: dto.SweepKindEmptyBin})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
	_, err = processSweep(ctx, dto.SweepRequest{Kind: "compact"})
	assert.ErrorIs(t, err, apperr.ErrInvalidArgument)
}

func TestHandleSweepMessageAcksSuccess(t *testing.T) {
	stubJobs(t, func(context.Context) (*dto.SweepResult, error) { return &dto.SweepResult{}, nil }, nil)
	acker, sink := &fakeAcker{}, &fakeSink{}

	handleSweepMessage(context.Background(), sink, nil, delivery(t, acker, dto.SweepRequest{Kind: dto.SweepKindExpired}))
	assert.Equal(t, 1, acker.acks)
	assert.Empty(t, sink.bodies)
}

func TestHandleSweepMessageDeadLettersFailures(t *testing.T) {
	stubJobs(t, nil, func(context.Context, uint64) (int, error) { return 0, errors.New("db down") })
	acker, sink := &fakeAcker{}, &fakeSink{}

	req := dto.SweepRequest{Kind: dto.SweepKindEmptyBin, OwnerID: 3}
	handleSweepMessage(context.Background(), sink, nil, delivery(t, acker, req))
	assert.Equal(t, 1, acker.acks)
	require.Len(t, sink.bodies, 1)

	var letter mq.DeadLetter
	require.NoError(t, json.Unmarshal(sink.bodies[0], &letter))
	assert.Equal(t, req, letter.Request)
	assert.Contains(t, letter.Error, "db down")
}

func TestHandleSweepMessageInvalidBody(t *testing.T) {
	acker, sink := &fakeAcker{}, &fakeSink{}
	handleSweepMessage(context.Background(), sink, nil, delivery(t, acker, []byte("{not json")))
	assert.Equal(t, 1, acker.acks)
	assert.Len(t, sink.bodies, 1)
}

func TestHandleSweepMessageRequeuesWhenDeadLetterFails(t *testing.T) {
	stubJobs(t, func(context.Context) (*dto.SweepResult, error) { return nil, errors.New("boom") }, nil)
	acker, sink := &fakeAcker{}, &fakeSink{err: errors.New("broker gone")}

	handleSweepMessage(context.Background(), sink, nil, delivery(t, acker, dto.SweepRequest{Kind: dto.SweepKindExpired}))
	assert.Equal(t, 0, acker.acks)
	assert.Equal(t, 1, acker.nacks)
	assert.True(t, acker.requeue)
}

func TestHandleSweepMessageRequeuesOnCancel(t *testing.T) {
	stubJobs(t, func(ctx context.Context) (*dto.SweepResult, error) { return nil, context.Canceled }, nil)
	acker, sink := &fakeAcker{}, &fakeSink{}

	handleSweepMessage(context.Background(), sink, nil, delivery(t, acker, dto.SweepRequest{Kind: dto.SweepKindExpired}))
	assert.Equal(t, 1, acker.nacks)
	assert.True(t, acker.requeue)
	assert.Empty(t, sink.bodies)
}
