package repo

import (
	"campaigner/config"
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

type txKey struct{}

type TxService interface {
	RunTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// BaseRepo owns the shared gorm handle. Repos resolve their db through it so
// that work enlisted via RunTx shares one transaction.
type BaseRepo interface {
	TxService

	DB(ctx context.Context) *gorm.DB
	Close(ctx context.Context) error
}

type baseRepo struct {
	db *gorm.DB
}

func NewBaseRepo(_ context.Context, mysqlCfg config.MySQL) (BaseRepo, error) {
	var db *gorm.DB

	// transient connect failures on process start are common in fresh deploys
	err := backoff.Retry(func() error {
		var openErr error
		db, openErr = gorm.Open(mysql.Open(mysqlCfg.ToDSN()), &gorm.Config{})
		return openErr
	}, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 4))
	if err != nil {
		return nil, err
	}

	return &baseRepo{
		db: db,
	}, nil
}

func (r *baseRepo) DB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return r.db
}

func (r *baseRepo) RunTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if _, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return fn(ctx)
	}

	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

func (r *baseRepo) Close(_ context.Context) error {
	if r.db != nil {
		sqlDB, err := r.db.DB()
		if err != nil {
			return err
		}

		if err := sqlDB.Close(); err != nil {
			return err
		}
	}
	return nil
}

func now() uint64 {
	return uint64(time.Now().Unix())
}
