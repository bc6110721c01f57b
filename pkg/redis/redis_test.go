package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetBytes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)
	ctx := context.Background()

	mock.ExpectSet("chart:hourly", []byte("png"), time.Minute).SetVal("OK")
	require.NoError(t, client.SetBytes(ctx, "chart:hourly", []byte("png"), time.Minute))

	mock.ExpectSet("chart:weekly", []byte("png"), time.Minute).SetErr(errors.New("readonly"))
	assert.Error(t, client.SetBytes(ctx, "chart:weekly", []byte("png"), time.Minute))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetBytes(t *testing.T) {
	db, mock := redismock.NewClientMock()
	client := Wrap(db)
	ctx := context.Background()

	mock.ExpectGet("chart:hourly").SetVal("png")
	data, err := client.GetBytes(ctx, "chart:hourly")
	require.NoError(t, err)
	assert.Equal(t, []byte("png"), data)

	mock.ExpectGet("chart:missing").RedisNil()
	_, err = client.GetBytes(ctx, "chart:missing")
	assert.ErrorIs(t, err, ErrCacheMiss)

	mock.ExpectGet("chart:broken").SetErr(errors.New("connection reset"))
	_, err = client.GetBytes(ctx, "chart:broken")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrCacheMiss)

	assert.NoError(t, mock.ExpectationsWereMet())
}
