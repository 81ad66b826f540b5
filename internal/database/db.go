package database

import (
	"fmt"
	"log"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Connect establishes a connection to the PostgreSQL database
func Connect(dsn string, logLevel logger.LogLevel) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	log.Println("Database connection established")
	return db, nil
}

// AutoMigrate runs database migrations
func AutoMigrate(db *gorm.DB) error {
	log.Println("Running database migrations...")

	err := db.AutoMigrate(
		// Monitoring models
		&MonitoringCheck{},
		&CheckResult{},
		&Service{},
		&ServiceCheckAssociation{},
		&StatusNarrative{},
		// People models
		&User{},
		&Team{},
		&TeamMember{},
		&OnCallSchedule{},
		&ScheduleMember{},
		// Escalation models
		&Incident{},
		&EscalationPolicy{},
		&EscalationStep{},
		&EscalationTarget{},
		&IncidentEscalation{},
	)
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	log.Println("Database migrations completed successfully")
	return nil
}
