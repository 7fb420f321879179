package db

import (
	"context"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"

	"github.com/malwarebo/invoicer/config"
	"github.com/malwarebo/invoicer/utils"
)

type DB struct {
	*gorm.DB
}

func (db *DB) GetDB() *gorm.DB {
	return db.DB
}

// GormConfig is shared by the server and the tests. TranslateError turns
// unique violations into gorm.ErrDuplicatedKey.
func GormConfig(level logger.LogLevel) *gorm.Config {
	return &gorm.Config{
		Logger:         logger.Default.LogMode(level),
		TranslateError: true,
	}
}

func LogLevelFor(environment string) logger.LogLevel {
	switch environment {
	case "production", "staging":
		return logger.Warn
	default:
		return logger.Info
	}
}

func CreateDB(cfg *config.Config) (*DB, error) {
	ctx := context.Background()
	log := utils.NewLogger("database")

	db, err := gorm.Open(postgres.Open(cfg.GetDatabaseURL()), GormConfig(LogLevelFor(cfg.Environment)))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to primary database: %w", err)
	}

	if len(cfg.Database.ReplicaDSNs) > 0 {
		resolverConfig := dbresolver.Config{}
		for _, replicaDSN := range cfg.Database.ReplicaDSNs {
			resolverConfig.Replicas = append(resolverConfig.Replicas, postgres.Open(replicaDSN))
		}

		err = db.Use(dbresolver.Register(resolverConfig).
			SetConnMaxIdleTime(cfg.Database.MaxIdleTime).
			SetConnMaxLifetime(cfg.Database.MaxLifetime).
			SetMaxIdleConns(cfg.Database.MaxIdleConns).
			SetMaxOpenConns(cfg.Database.MaxOpenConns))
		if err != nil {
			return nil, fmt.Errorf("failed to configure read replicas: %w", err)
		}

		log.Info(ctx, "Configured read replicas", map[string]interface{}{
			"replicas": len(cfg.Database.ReplicaDSNs),
		})
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.Database.MaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.Database.MaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	log.Info(ctx, "Connected to database", map[string]interface{}{
		"host": cfg.Database.Host,
		"name": cfg.Database.DBName,
	})
	return &DB{db}, nil
}

func (db *DB) Ping(ctx context.Context) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}
	return sqlDB.Close()
}
