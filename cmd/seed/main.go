package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"raceday/internal/config"
	"raceday/internal/model"
	"raceday/internal/repository"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// Seeds a local database with one account per role, a sample event and two
// pending registrations. All accounts share the password "password123".
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	db, err := sql.Open("postgres", cfg.Database.DSN())
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
	}()

	repo := repository.NewPostgresRepository(db)
	if err := repo.Migrate(); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	ctx := context.Background()
	now := time.Now()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		log.Fatalf("Failed to hash password: %v", err)
	}

	admin := model.User{
		ID:                 uuid.New(),
		Name:               "Race Admin",
		Email:              "admin@raceday.local",
		PasswordHash:       string(hashedPassword),
		Role:               model.RoleAdmin,
		VerificationStatus: model.VerificationApproved,
		VerifiedAt:         &now,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	marshal := model.User{
		ID:                 uuid.New(),
		Name:               "Maria Marshal",
		Email:              "marshal@raceday.local",
		PasswordHash:       string(hashedPassword),
		Role:               model.RoleMarshal,
		VerificationStatus: model.VerificationApproved,
		VerifiedAt:         &now,
		CreatedAt:          now.Add(-24 * time.Hour),
		UpdatedAt:          now,
	}
	pendingMarshal := model.User{
		ID:                 uuid.New(),
		Name:               "Peter Pending",
		Email:              "pending-marshal@raceday.local",
		PasswordHash:       string(hashedPassword),
		Role:               model.RoleMarshal,
		VerificationStatus: model.VerificationPending,
		CreatedAt:          now.Add(-2 * time.Hour),
		UpdatedAt:          now.Add(-2 * time.Hour),
	}
	runner := model.User{
		ID:                 uuid.New(),
		Name:               "Rosa Runner",
		Email:              "runner@raceday.local",
		PasswordHash:       string(hashedPassword),
		Role:               model.RoleRunner,
		VerificationStatus: model.VerificationApproved,
		CreatedAt:          now.Add(-30 * time.Minute),
		UpdatedAt:          now.Add(-30 * time.Minute),
	}
	runner2 := model.User{
		ID:                 uuid.New(),
		Name:               "Rick Runner",
		Email:              "runner2@raceday.local",
		PasswordHash:       string(hashedPassword),
		Role:               model.RoleRunner,
		VerificationStatus: model.VerificationApproved,
		CreatedAt:          now.Add(-15 * time.Minute),
		UpdatedAt:          now.Add(-15 * time.Minute),
	}

	for _, user := range []model.User{admin, marshal, pendingMarshal, runner, runner2} {
		if err := repo.CreateUser(ctx, user); err != nil {
			log.Printf("Failed to create user %s: %v", user.Email, err)
		} else {
			fmt.Printf("Created user: %s (%s)\n", user.Name, user.Email)
		}
	}

	event := model.Event{
		ID:        uuid.New(),
		Name:      "City Park Run",
		Location:  "Central Park",
		Date:      now.AddDate(0, 1, 0),
		CreatedBy: marshal.ID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := repo.CreateEvent(ctx, event); err != nil {
		log.Fatalf("Failed to create event: %v", err)
	}
	fmt.Printf("Created event: %s\n", event.Name)

	slotLimit := 100
	price := int64(2500)
	tenK := model.Category{
		ID:         uuid.New(),
		Name:       "10K",
		SlotLimit:  &slotLimit,
		PriceCents: &price,
		CreatedAt:  now,
	}
	funRun := model.Category{
		ID:        uuid.New(),
		Name:      "Fun Run",
		CreatedAt: now,
	}
	for _, category := range []model.Category{tenK, funRun} {
		if err := repo.CreateCategory(ctx, category); err != nil {
			log.Fatalf("Failed to create category %s: %v", category.Name, err)
		}
		if err := repo.LinkCategory(ctx, event.ID, category.ID); err != nil {
			log.Fatalf("Failed to link category %s: %v", category.Name, err)
		}
		fmt.Printf("Created category: %s\n", category.Name)
	}

	participants := []model.Participant{
		{
			ID:                 uuid.New(),
			UserID:             runner.ID,
			EventID:            event.ID,
			CategoryID:         tenK.ID,
			RegistrationStatus: model.RegistrationPending,
			PaymentStatus:      model.PaymentPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		},
		{
			ID:                 uuid.New(),
			UserID:             runner2.ID,
			EventID:            event.ID,
			CategoryID:         funRun.ID,
			RegistrationStatus: model.RegistrationPending,
			PaymentStatus:      model.PaymentPending,
			CreatedAt:          now,
			UpdatedAt:          now,
		},
	}
	for _, participant := range participants {
		if err := repo.CreateParticipant(ctx, participant); err != nil {
			log.Printf("Failed to create registration for %s: %v", participant.UserID, err)
		} else {
			fmt.Printf("Created registration: %s\n", participant.ID)
		}
	}

	fmt.Println("\nSeed data created successfully!")
	fmt.Println("Admin: admin@raceday.local (password: password123)")
	fmt.Println("Marshal: marshal@raceday.local, pending: pending-marshal@raceday.local")
	fmt.Println("Runners: runner@raceday.local, runner2@raceday.local")
}
