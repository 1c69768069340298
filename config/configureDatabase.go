package config

import (
	"fmt"
	"log"

	"question-bank-backend/db/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// allModels defines all models that should be migrated.
// This is the only place you need to add new models.
var allModels = []interface{}{
	// Organizational scope
	&models.Organization{},

	// Master data referenced by uploaded questions
	&models.Board{},
	&models.State{},
	&models.Medium{},
	&models.Subject{},
	&models.CognitiveLearning{},
	&models.Difficulty{},

	// Question bank
	&models.Taxonomy{},
	&models.Question{},

	// Bulk upload pipeline
	&models.UploadJob{},
	&models.RowOutcome{},
}

func ConfigureDatabase() *gorm.DB {
	host := GetEnv("DB_HOST")
	user := GetEnv("POSTGRES_USER")
	password := GetEnv("POSTGRES_PASSWORD")
	dbname := GetEnv("POSTGRES_DB")
	port := GetEnv("DB_PORT")
	timezone := GetEnvOrDefault("DB_TIMEZONE", "UTC")

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=disable TimeZone=%s",
		host, user, password, dbname, port, timezone,
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{TranslateError: true})
	if err != nil {
		log.Fatalf("[DB-CONNECT] Failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(allModels...); err != nil {
		log.Fatalf("[DB-MIGRATE] Failed to run migrations: %v", err)
	}

	return db
}
