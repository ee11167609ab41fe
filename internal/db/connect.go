package db

import (
	"fmt"
	"net"
	"strconv"

	gomysql "github.com/go-sql-driver/mysql"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/bikereg/internal/config"
)

// DSN builds a MySQL DSN from database settings.
func DSN(cfg config.DatabaseConfig) string {
	mc := gomysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Name
	mc.ParseTime = true
	return mc.FormatDSN()
}

// Connect opens a GORM connection for the configured driver.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	var dialector gorm.Dialector
	var target string
	switch cfg.Driver {
	case "", "sqlite":
		target = cfg.Path
		dialector = sqlite.Open(cfg.Path)
	case "mysql":
		target = fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Name)
		dialector = mysql.Open(DSN(cfg))
	default:
		return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
	}

	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to %s: %w", target, err)
	}
	if cfg.Driver != "mysql" {
		// SQLite allows a single writer.
		sqlDB, err := gdb.DB()
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s: %w", target, err)
		}
		sqlDB.SetMaxOpenConns(1)
	}
	return gdb, nil
}
