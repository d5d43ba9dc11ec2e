package db

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/rs/zerolog"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"pathway/internal/config"
	"pathway/internal/models"
)

// Open connects to PostgreSQL, auto-migrates the models, seeds categories and
// applies the SQL migrations found in cfg.MigrationsPath.
func Open(cfg config.DatabaseConfig, log zerolog.Logger) (*gorm.DB, error) {
	log = log.With().Str("component", "database").Logger()

	db, err := gorm.Open(pgdriver.Open(cfg.DSN), &gorm.Config{
		Logger: gormlogger.New(gormWriter{log: log}, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.MaxLifetime)

	log.Info().Int("max_open_conns", cfg.MaxOpenConns).Msg("Database connection established")

	err = db.AutoMigrate(
		&models.User{},
		&models.Category{},
		&models.Discussion{},
		&models.DiscussionContent{},
		&models.Comment{},
		&models.DiscussionLike{},
		&models.CommentLike{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Info().Msg("Database auto-migration completed")

	if err := seedCategories(db, log); err != nil {
		return nil, err
	}

	if err := runMigrations(db, cfg.MigrationsPath, log); err != nil {
		return nil, err
	}
	return db, nil
}

// runMigrations applies the hand-written SQL (functions, partial indexes) that
// AutoMigrate cannot express.
func runMigrations(db *gorm.DB, path string, log zerolog.Logger) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}

	driver, err := postgres.WithInstance(sqlDB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+path, "postgres", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}
	log.Info().Uint("version", version).Bool("dirty", dirty).Msg("SQL migrations applied")
	return nil
}

// DefaultCategories are created on first start.
var DefaultCategories = []models.Category{
	{Slug: "career-advice", Name: "Career Advice", Description: "Growing, switching and navigating careers"},
	{Slug: "interviews", Name: "Interviews", Description: "Preparing for and debriefing interviews"},
	{Slug: "mentorship", Name: "Mentorship", Description: "Finding mentors and mentoring others"},
	{Slug: "job-search", Name: "Job Search", Description: "Applications, referrals and offers"},
	{Slug: "funding", Name: "Funding", Description: "Grants, scholarships and funding applications"},
	{Slug: "workshops", Name: "Workshops", Description: "Workshop and course follow-ups"},
}

func seedCategories(db *gorm.DB, log zerolog.Logger) error {
	var count int64
	if err := db.Model(&models.Category{}).Count(&count).Error; err != nil {
		return fmt.Errorf("failed to count categories: %w", err)
	}
	if count > 0 {
		log.Debug().Msg("Categories already seeded, skipping")
		return nil
	}

	for _, category := range DefaultCategories {
		category := category
		if err := db.Create(&category).Error; err != nil {
			log.Error().Err(err).Str("slug", category.Slug).Msg("Failed to create category")
		}
	}
	log.Info().Int("count", len(DefaultCategories)).Msg("Initial categories created")
	return nil
}

// gormWriter routes gorm's logger through zerolog.
type gormWriter struct {
	log zerolog.Logger
}

func (w gormWriter) Printf(format string, args ...interface{}) {
	w.log.Warn().Msgf(format, args...)
}
