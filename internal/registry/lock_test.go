package registry

import (
	"context"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-fusion/internal/config"
	"github.com/rxtech-lab/argo-fusion/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type LockTestSuite struct {
	suite.Suite
}

func TestLockSuite(t *testing.T) {
	suite.Run(t, new(LockTestSuite))
}

func (suite *LockTestSuite) TestLocalLockerIsExclusive() {
	locker := NewLocalLocker()

	release, err := locker.Acquire(context.Background())
	suite.Require().NoError(err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = locker.Acquire(ctx)
	suite.Equal(errors.ErrCodeLockUnavailable, errors.GetCode(err))

	release()
	// releasing twice must not free a lock taken by someone else
	again, err := locker.Acquire(context.Background())
	suite.Require().NoError(err)
	release()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()

	_, err = locker.Acquire(ctx2)
	suite.Error(err)

	again()
}

func (suite *LockTestSuite) TestRedisLockerUnreachable() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	_, err := NewRedisLockerFromConfig(ctx, config.RedisConfig{Addr: "127.0.0.1:1", LockKey: "k", LockTTLSec: 1})
	suite.Equal(errors.ErrCodeLockUnavailable, errors.GetCode(err))
}
