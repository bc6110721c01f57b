package health

import (
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/stretchr/testify/assert"
)

type fakeLoaded struct{ err error }

func (f fakeLoaded) Ready() error { return f.err }

func TestDefaultCheckerConfig(t *testing.T) {
	assert.Equal(t, 2*time.Second, DefaultCheckerConfig().Timeout)
}

func TestRedisChecker(t *testing.T) {
	db, mock := redismock.NewClientMock()

	mock.ExpectPing().SetVal("PONG")
	assert.NoError(t, RedisChecker(db)())

	mock.ExpectPing().SetErr(errors.New("connection refused"))
	assert.EqualError(t, RedisChecker(db)(), "connection refused")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisChecker_NilClient(t *testing.T) {
	assert.EqualError(t, RedisChecker(nil)(), "redis client is nil")
}

func TestReadyChecker(t *testing.T) {
	assert.NoError(t, ReadyChecker(fakeLoaded{})())
	assert.EqualError(t, ReadyChecker(fakeLoaded{err: errors.New("model missing")})(), "model missing")
	assert.Error(t, ReadyChecker(nil)())
}
