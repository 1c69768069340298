package seeds

import (
	"errors"
	"fmt"

	"question-bank-backend/config"
	"question-bank-backend/db/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// SeedDefaultOrganization ensures the default organization exists and
// returns it. The name comes from DEFAULT_ORGANIZATION, falling back to a
// development default.
func SeedDefaultOrganization(db *gorm.DB) (*models.Organization, error) {
	name := config.GetEnvOrDefault("DEFAULT_ORGANIZATION", "Default Organization")

	var org models.Organization
	err := db.Where("name = ?", name).First(&org).Error
	if err == nil {
		return &org, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("failed to look up default organization: %w", err)
	}

	org = models.Organization{
		ID:       uuid.New(),
		Name:     name,
		IsActive: true,
	}
	if err := db.Create(&org).Error; err != nil {
		return nil, fmt.Errorf("failed to create default organization: %w", err)
	}

	config.Logger.Info("Seeded default organization", zap.String("name", name))
	return &org, nil
}

// SeedMasterData seeds the cognitive learning levels, difficulties and a
// starter subject set for one organization. Uploads reference these by name,
// so a fresh deployment needs them before the first bulk upload.
func SeedMasterData(db *gorm.DB, org *models.Organization) error {
	config.Logger.Info("Starting master data seeding...",
		zap.String("organization", org.Name))

	cognitiveLevels := []string{"Information", "Understanding", "Application", "Analysis"}
	for _, name := range cognitiveLevels {
		if err := seedCognitiveLearning(db, org.ID, name); err != nil {
			return err
		}
	}

	difficulties := []string{"Easy", "Medium", "Hard"}
	for _, name := range difficulties {
		if err := seedDifficulty(db, org.ID, name); err != nil {
			return err
		}
	}

	if err := seedStarterSubjects(db, org.ID); err != nil {
		return err
	}

	config.Logger.Info("Master data seeding completed")
	return nil
}

// seedStarterSubjects creates an English medium with a small subject set so
// the sample template row commits on a fresh install.
func seedStarterSubjects(db *gorm.DB, orgID uuid.UUID) error {
	var medium models.Medium
	err := db.Where("organization_id = ? AND name = ?", orgID, "English").First(&medium).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		medium = models.Medium{
			ID:             uuid.New(),
			Name:           "English",
			OrganizationID: orgID,
			CreatedBy:      "system",
		}
		err = db.Create(&medium).Error
	}
	if err != nil {
		return fmt.Errorf("failed to seed English medium: %w", err)
	}

	subjects := []struct {
		name     string
		standard string
	}{
		{"Science", "8"},
		{"Mathematics", "8"},
	}
	for _, s := range subjects {
		var count int64
		err := db.Model(&models.Subject{}).
			Where("organization_id = ? AND name = ? AND standard = ? AND medium_id = ?",
				orgID, s.name, s.standard, medium.ID).
			Count(&count).Error
		if err != nil {
			return fmt.Errorf("failed to check subject %q: %w", s.name, err)
		}
		if count > 0 {
			continue
		}

		subject := models.Subject{
			ID:             uuid.New(),
			Name:           s.name,
			Standard:       s.standard,
			MediumID:       medium.ID,
			OrganizationID: orgID,
			IsActive:       true,
			CreatedBy:      "system",
		}
		if err := db.Create(&subject).Error; err != nil {
			return fmt.Errorf("failed to seed subject %q: %w", s.name, err)
		}
	}
	return nil
}

func seedCognitiveLearning(db *gorm.DB, orgID uuid.UUID, name string) error {
	var count int64
	err := db.Model(&models.CognitiveLearning{}).
		Where("organization_id = ? AND name = ?", orgID, name).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check cognitive learning %q: %w", name, err)
	}
	if count > 0 {
		return nil
	}

	row := models.CognitiveLearning{
		ID:             uuid.New(),
		Name:           name,
		OrganizationID: orgID,
		CreatedBy:      "system",
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to seed cognitive learning %q: %w", name, err)
	}
	return nil
}

func seedDifficulty(db *gorm.DB, orgID uuid.UUID, name string) error {
	var count int64
	err := db.Model(&models.Difficulty{}).
		Where("organization_id = ? AND name = ?", orgID, name).
		Count(&count).Error
	if err != nil {
		return fmt.Errorf("failed to check difficulty %q: %w", name, err)
	}
	if count > 0 {
		return nil
	}

	row := models.Difficulty{
		ID:             uuid.New(),
		Name:           name,
		OrganizationID: orgID,
		CreatedBy:      "system",
	}
	if err := db.Create(&row).Error; err != nil {
		return fmt.Errorf("failed to seed difficulty %q: %w", name, err)
	}
	return nil
}
