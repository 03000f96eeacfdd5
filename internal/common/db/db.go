package db

import (
	"fmt"

	"github.com/VehicleVault/VehicleVault/internal/common/config"
	"github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// Open 根据配置打开数据库连接（mysql / sqlite）。
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "", "mysql":
		return NewMySQL(cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.MaxIdle, cfg.MaxOpen)
	case "sqlite":
		return NewSQLite(cfg.Path)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
}

// NewMySQL 创建 MySQL 连接并设置连接池参数。
func NewMySQL(host string, port int, user, password, database string, maxIdle, maxOpen int) (*gorm.DB, error) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, host, port, database)

	gdb, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
		// 把驱动错误翻译成 gorm.ErrDuplicatedKey 等统一错误
		TranslateError: true,
		// 级联删除由仓储层在事务里显式完成，不依赖数据库层的外键约束
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open mysql: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if maxIdle > 0 {
		sqlDB.SetMaxIdleConns(maxIdle)
	}
	if maxOpen > 0 {
		sqlDB.SetMaxOpenConns(maxOpen)
	}
	return gdb, nil
}

// NewSQLite 创建 SQLite 连接（纯 Go 驱动，便于本地开发与测试）。
// path 为 ":memory:" 时使用内存库。
func NewSQLite(path string) (*gorm.DB, error) {
	if path == "" {
		path = ":memory:"
	}
	gdb, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Warn),
		TranslateError: true,
		DisableForeignKeyConstraintWhenMigrating: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	return gdb, nil
}
