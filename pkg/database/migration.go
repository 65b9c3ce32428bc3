package database

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pkg/errors"
)

// MigrationLogger adapts ectologger to migrate.Logger
type MigrationLogger struct {
	ectologger.Logger
}

func (l MigrationLogger) Verbose() bool {
	return false
}

func (l MigrationLogger) Printf(format string, v ...any) {
	l.Infof(format, v...)
}

type MigrationConfig struct {
	MigrationFolderPath string
	// Version 0 migrates to the latest version
	Version uint
}

type MigrationService struct {
	config MigrationConfig
	logger ectologger.Logger
}

func NewMigrationService(logger ectologger.Logger, config MigrationConfig) *MigrationService {
	return &MigrationService{
		config: config,
		logger: logger,
	}
}

// resolveMigrationFolder accepts an absolute folder or one relative to the working directory
func (ms *MigrationService) resolveMigrationFolder() (string, error) {
	folder := ms.config.MigrationFolderPath
	if !filepath.IsAbs(folder) {
		wd, err := os.Getwd()
		if err != nil {
			return "", errors.Wrap(err, "failed to resolve working directory")
		}
		folder = filepath.Join(wd, folder)
	}
	if _, err := os.Stat(folder); err != nil {
		return "", errors.Wrap(err, fmt.Sprintf("migration folder %s does not exist", folder))
	}
	return folder, nil
}

// Migrate applies the migrations in the configured folder to db
func (ms *MigrationService) Migrate(databaseName string, db DB) error {
	folder, err := ms.resolveMigrationFolder()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(db.SQL(), &postgres.Config{DatabaseName: databaseName})
	if err != nil {
		return errors.Wrap(err, "failed to create migration driver")
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+folder, databaseName, driver)
	if err != nil {
		ms.logger.WithError(err).Error("Failed to create migrate instance")
		return errors.Wrap(err, "failed to create migrate instance")
	}
	m.Log = MigrationLogger{Logger: ms.logger}

	start := time.Now()
	if ms.config.Version != 0 {
		err = m.Migrate(ms.config.Version)
	} else {
		err = m.Up()
	}

	switch {
	case err == nil:
		ms.logger.Infof("Database migrations completed in %v", time.Since(start))
		return nil
	case errors.Is(err, migrate.ErrNoChange):
		ms.logger.Info("No new migrations to apply")
		return nil
	}

	version, dirty, _ := m.Version()
	ms.logger.WithError(err).Errorf("Failed to apply migrations. Database version is dirty=%t at version %d", dirty, version)
	return errors.Wrap(err, "failed to apply migrations")
}
