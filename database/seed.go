package database

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/sahilchouksey/gradgrid/model"
	"gorm.io/gorm"
)

// Seeder handles database seeding operations
type Seeder struct {
	db *gorm.DB
}

// NewSeeder creates a new seeder instance
func NewSeeder(db *gorm.DB) *Seeder {
	return &Seeder{db: db}
}

// SeedAll runs all seed functions
func (s *Seeder) SeedAll() error {
	log.Println("🌱 Starting database seeding...")

	// Run seeds in order (respecting foreign key constraints)
	if err := s.SeedUsers(); err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	if err := s.SeedGlobalColumns(); err != nil {
		return fmt.Errorf("failed to seed global columns: %w", err)
	}

	if err := s.SeedUniversities(); err != nil {
		return fmt.Errorf("failed to seed universities: %w", err)
	}

	log.Println("✅ Database seeding completed successfully!")
	return nil
}

// SeedUsers creates the default admin plus two member accounts: one
// premium and one whose subscription has already lapsed, so the expiry
// job and the visibility cap both have something to act on out of the box.
func (s *Seeder) SeedUsers() error {
	var count int64
	if err := s.db.Model(&model.User{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Users already exist, skipping...")
		return nil
	}

	adminEmail := os.Getenv("ADMIN_EMAIL")
	if adminEmail == "" {
		adminEmail = "admin@gradgrid.local"
		log.Println("⚠️  ADMIN_EMAIL not set, using admin@gradgrid.local")
	}

	lapsedEnd := time.Now().AddDate(0, -1, 0)
	users := []model.User{
		{
			Email:              adminEmail,
			Name:               "System Administrator",
			Role:               "admin",
			SubscriptionStatus: model.SubscriptionActive,
			IsPremium:          true,
		},
		{
			Email:              "premium@gradgrid.local",
			Name:               "Premium Member",
			Role:               "member",
			SubscriptionStatus: model.SubscriptionActive,
			IsPremium:          true,
		},
		{
			Email:              "member@gradgrid.local",
			Name:               "Lapsed Member",
			Role:               "member",
			SubscriptionStatus: model.SubscriptionActive, // expiry job flips this
			SubscriptionEnd:    &lapsedEnd,
		},
	}

	for i := range users {
		if err := s.db.Create(&users[i]).Error; err != nil {
			return err
		}
		log.Printf("✅ Created user: %s (%s)\n", users[i].Email, users[i].Role)
	}
	return nil
}

// SeedGlobalColumns creates a couple of admin-curated columns that every
// user sees alongside their own.
func (s *Seeder) SeedGlobalColumns() error {
	var count int64
	if err := s.db.Model(&model.Column{}).Where("scope = ?", model.ScopeGlobal).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Global columns already exist, skipping...")
		return nil
	}

	columns := []model.Column{
		{ID: uuid.New().String(), Title: "Tuition (intl.)", Scope: model.ScopeGlobal},
		{ID: uuid.New().String(), Title: "Application Deadline", Scope: model.ScopeGlobal},
	}

	for i := range columns {
		if err := s.db.Create(&columns[i]).Error; err != nil {
			return err
		}
		log.Printf("✅ Created global column: %s\n", columns[i].Title)
	}
	return nil
}

// SeedUniversities creates sample rows for the lapsed member. More than
// the free-row limit, so the visibility filter has hidden rows to show.
func (s *Seeder) SeedUniversities() error {
	var count int64
	if err := s.db.Model(&model.University{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		log.Println("⏭️  Universities already exist, skipping...")
		return nil
	}

	owner := "member@gradgrid.local"
	samples := []model.University{
		{
			Name:     "ETH Zurich",
			URL:      "https://ethz.ch",
			Programs: pq.StringArray{"Computer Science", "Robotics"},
			Status:   model.StatusCompleted,
		},
		{
			Name:     "TU Delft",
			URL:      "https://www.tudelft.nl",
			Programs: pq.StringArray{"Embedded Systems"},
			Status:   model.StatusCompleted,
		},
		{
			Name:     "KTH Royal Institute of Technology",
			URL:      "https://www.kth.se",
			Programs: pq.StringArray{"Machine Learning"},
			Status:   model.StatusCompleted,
		},
		{
			Name:   "University of Toronto",
			URL:    "https://www.utoronto.ca",
			Status: model.StatusPending,
		},
		{
			Name:   "National University of Singapore",
			Status: model.StatusFailed,
		},
	}

	for i := range samples {
		samples[i].ID = uuid.New().String()
		samples[i].UserEmail = owner
		if samples[i].Status == model.StatusCompleted {
			samples[i].LastUpdated = time.Now().Add(-time.Duration(i+1) * time.Hour)
		}
		if err := s.db.Create(&samples[i]).Error; err != nil {
			return err
		}
		log.Printf("✅ Created university: %s\n", samples[i].Name)
	}
	return nil
}

// RunSeeds is a convenience function to run all seeds
func RunSeeds(db *gorm.DB) error {
	seeder := NewSeeder(db)
	return seeder.SeedAll()
}
