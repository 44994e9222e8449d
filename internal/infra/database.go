package infra

import (
	"fmt"

	"github.com/Danmoreng/mtg-pwa-sub001/internal/model"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Supported DATABASE_DRIVER values.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// NewDatabase opens a GORM connection for driver, runs AutoMigrate for the
// ledger tables and applies the schema patches AutoMigrate cannot express.
// The sqlite driver serves single-device installs and tests.
func NewDatabase(driver, dsn string) (*gorm.DB, error) {
	var dialector gorm.Dialector
	switch driver {
	case DriverPostgres, "":
		dialector = postgres.Open(dsn)
	case DriverSQLite:
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// One writer; the reconciler already serializes its runs.
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(5)
	}

	if err := RunMigrations(db); err != nil {
		return nil, err
	}
	return db, nil
}

// RunMigrations creates or updates every ledger table. Safe to re-run.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&model.Acquisition{},
		&model.CardLot{},
		&model.SellTransaction{},
		&model.SellAllocation{},
		&model.Scan{},
		&model.ScanMatch{},
		&model.PricePoint{},
	); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return nil
}

// applySchemaPatches runs idempotent DDL that AutoMigrate does not cover.
func applySchemaPatches(db *gorm.DB) error {
	patches := []string{
		// provisional lot lookups; partial indexes work on
		// postgres and sqlite alike
		`CREATE INDEX IF NOT EXISTS idx_card_lots_provisional
		    ON card_lots (fingerprint, finish, language)
		    WHERE source = 'provisional'`,
		// outstanding-sale lookups
		`CREATE INDEX IF NOT EXISTS idx_sell_allocations_tx_lot
		    ON sell_allocations (transaction_id, lot_id)`,
	}
	for _, sql := range patches {
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", sql[:min(len(sql), 60)], err)
		}
	}
	return nil
}
