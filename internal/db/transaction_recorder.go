// Package db is an optional audit-sink mirror of the trade lifecycle's
// append-only log (spec.md §4.6): the JSON snapshot and log file remain
// the system of record, this package only additionally persists each
// BUY/SELL/CLOSE event to MySQL for downstream querying. Grounded on the
// teacher repo's GORM-backed MySQLRecorder (internal/db/transaction_recorder.go),
// retargeted from one periodic asset snapshot to one row per trade event.
package db

import (
	"fmt"
	"time"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TradeEventRecord is the database model for one trade lifecycle event:
// a BUY, SELL or CLOSE, success or failure, mirroring the append-only
// trade log's logEntry shape (internal/trade/persistence.go).
type TradeEventRecord struct {
	ID            uint      `gorm:"primaryKey;autoIncrement"`
	Time          time.Time `gorm:"index;not null"`
	Status        string    `gorm:"type:varchar(16);not null"`
	Symbol        string    `gorm:"type:varchar(64)"`
	Pair          string    `gorm:"type:varchar(42);index;not null"`
	PolicyID      string    `gorm:"type:varchar(64)"`
	Action        string    `gorm:"type:varchar(8);not null"`
	ActionPercent int       `gorm:""`
	EthAmount     float64   `gorm:""`
	TokenAmount   float64   `gorm:""`
	Error         string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// TableName specifies the table name for GORM.
func (TradeEventRecord) TableName() string {
	return "trade_events"
}

// MySQLRecorder mirrors trade lifecycle events into MySQL via GORM.
type MySQLRecorder struct {
	db *gorm.DB
}

// NewMySQLRecorder opens a MySQL connection and migrates the schema.
// dsn format: "user:password@tcp(host:port)/dbname?charset=utf8mb4&parseTime=True&loc=Local".
func NewMySQLRecorder(dsn string) (*MySQLRecorder, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("db: connect to mysql: %w", err)
	}

	if err := db.AutoMigrate(&TradeEventRecord{}); err != nil {
		return nil, fmt.Errorf("db: migrate schema: %w", err)
	}

	return &MySQLRecorder{db: db}, nil
}

// NewMySQLRecorderWithDB wraps an already-open GORM DB instance and
// migrates the trade_events schema on it.
func NewMySQLRecorderWithDB(db *gorm.DB) (*MySQLRecorder, error) {
	if err := db.AutoMigrate(&TradeEventRecord{}); err != nil {
		return nil, fmt.Errorf("db: migrate schema: %w", err)
	}
	return &MySQLRecorder{db: db}, nil
}

// RecordTradeEvent persists one trade lifecycle event.
func (r *MySQLRecorder) RecordTradeEvent(rec TradeEventRecord) error {
	if rec.Time.IsZero() {
		rec.Time = time.Now()
	}
	if result := r.db.Create(&rec); result.Error != nil {
		return fmt.Errorf("db: record trade event: %w", result.Error)
	}
	return nil
}

// EventsByPair retrieves all recorded events for one pair, oldest first.
func (r *MySQLRecorder) EventsByPair(pair string) ([]TradeEventRecord, error) {
	var records []TradeEventRecord
	result := r.db.Where("pair = ?", pair).Order("time ASC").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("db: events by pair: %w", result.Error)
	}
	return records, nil
}

// EventsByTimeRange retrieves events within [start, end] (both ends
// inclusive), oldest first.
func (r *MySQLRecorder) EventsByTimeRange(start, end time.Time) ([]TradeEventRecord, error) {
	var records []TradeEventRecord
	result := r.db.Where("time BETWEEN ? AND ?", start, end).Order("time ASC").Find(&records)
	if result.Error != nil {
		return nil, fmt.Errorf("db: events by time range: %w", result.Error)
	}
	return records, nil
}

// Close closes the underlying database connection.
func (r *MySQLRecorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return fmt.Errorf("db: underlying *sql.DB: %w", err)
	}
	return sqlDB.Close()
}
