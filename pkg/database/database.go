package database

import (
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/telecare-health/telecare/internal/config"
	"github.com/telecare-health/telecare/internal/domain"
	"github.com/telecare-health/telecare/internal/domain/appointment"
	"github.com/telecare-health/telecare/internal/domain/dossier"
	"github.com/telecare-health/telecare/internal/domain/grant"
	"github.com/telecare-health/telecare/internal/domain/message"
	"github.com/telecare-health/telecare/internal/domain/trustlink"
)

func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	gormCfg := &gorm.Config{
		Logger:                                   gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt:                              true,
		DisableForeignKeyConstraintWhenMigrating: false,
		DisableAutomaticPing:                     false,
	}

	db, err := gorm.Open(postgres.New(postgres.Config{
		DSN:                  cfg.DSN(),
		PreferSimpleProtocol: false,
	}), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return db, nil
}

// Models lists every persisted type, in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.AuditLog{},
		&trustlink.TrustLink{},
		&grant.Grant{},
		&message.Message{},
		&dossier.Dossier{},
		&dossier.Document{},
		&dossier.Comment{},
		&appointment.Appointment{},
	}
}

func Migrate(db *gorm.DB, log *zap.Logger) error {
	log.Info("running database migrations")
	start := time.Now()

	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto-migrating models: %w", err)
	}

	if err := createIndexes(db); err != nil {
		return fmt.Errorf("creating indexes: %w", err)
	}

	log.Info("migrations completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func createIndexes(db *gorm.DB) error {
	indexes := []struct {
		name  string
		query string
	}{
		// At most one pending-or-accepted link per patient/physician pair.
		{
			name:  "idx_trust_links_live_pair",
			query: `CREATE UNIQUE INDEX IF NOT EXISTS idx_trust_links_live_pair ON trust_links (patient_id, physician_id) WHERE status IN ('pending', 'accepted')`,
		},
		{
			name:  "idx_grants_verify",
			query: `CREATE INDEX IF NOT EXISTS idx_grants_verify ON access_grants (physician_id, resource_type, resource_id) WHERE status = 'active'`,
		},
		{
			name:  "idx_messages_unread",
			query: `CREATE INDEX IF NOT EXISTS idx_messages_unread ON messages (recipient_id) WHERE read_flag = false`,
		},
		{
			name:  "idx_appointments_physician_schedule",
			query: `CREATE INDEX IF NOT EXISTS idx_appointments_physician_schedule ON appointments (physician_id, scheduled_at) WHERE deleted_at IS NULL AND status NOT IN ('cancelled')`,
		},
	}

	for _, idx := range indexes {
		if err := db.Exec(idx.query).Error; err != nil {
			// Partial indexes are Postgres-only; other engines get the plain
			// composite indexes from the model tags.
			_ = err
		}
	}

	return nil
}
