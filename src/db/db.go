package db

import (
	"menusync/src/config"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var db *gorm.DB

// Open connects to Postgres and installs the connection as the process pool.
func Open(cfg *config.Config, log *zap.Logger) (*gorm.DB, error) {
	level := logger.Warn
	if cfg.Server.Env == "local" {
		level = logger.Info
	}
	_db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
	})
	if err != nil {
		log.Error("Error connecting to database", zap.Error(err))
		return nil, err
	}
	sqlDB, err := _db.DB()
	if err != nil {
		log.Error("Error establishing connection to database", zap.Error(err))
		return nil, err
	}
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Hour)

	db = _db
	return _db, nil
}

func GetDb() *gorm.DB {
	return db
}

func NewDB(newdb *gorm.DB) {
	db = newdb
}
