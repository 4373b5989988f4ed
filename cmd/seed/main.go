package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-booking/internal/appointment"
	"github.com/hackgods/clinic-booking/internal/availability"
	"github.com/hackgods/clinic-booking/internal/config"
	"github.com/hackgods/clinic-booking/internal/db"
	"github.com/hackgods/clinic-booking/internal/identity"
	"github.com/hackgods/clinic-booking/pkg/logging"
)

// seedPassword is shared by every generated account so cmd/simulate can log in.
const seedPassword = "password123"

var specializations = []string{
	"Dermatology",
	"Cardiology",
	"General Practice",
	"Orthopedics",
	"Endocrinology",
	"Neurology",
	"Pediatrics",
	"Psychiatry",
	"Ophthalmology",
	"ENT",
}

var histories = []string{
	"",
	"Hypertension",
	"Type 2 diabetes",
	"Seasonal allergies",
	"Asthma",
	"No known conditions",
}

var notes = []string{
	"",
	"Follow-up visit",
	"First consultation",
	"Routine check-up",
	"Review lab results",
}

func main() {
	practitioners := flag.Int("practitioners", 20, "practitioners to create")
	clients := flag.Int("clients", 200, "clients to create")
	appointments := flag.Int("appointments", 300, "appointments to create")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel)
	logger.Info("seed starting", "practitioners", *practitioners, "clients", *clients, "appointments", *appointments)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN, db.PoolOptions{ApplicationName: "seed"})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// The ceiling would deactivate seeded accounts, so it is disabled here.
	identitySvc := identity.NewService(
		identity.NewPgStore(pool),
		identity.NewBcryptHasher(cfg.BcryptCost),
		identity.NewTokenIssuer(cfg.JWTSecret, cfg.TokenTTL),
		0,
		logger,
	)
	availabilitySvc := availability.NewService(availability.NewPgStore(pool), logger)
	repo := appointment.NewPgRepository(pool)

	if cfg.AdminPassword != "" {
		if err := identitySvc.EnsureAdmin(ctx, cfg.AdminEmail, cfg.AdminPassword); err != nil {
			logger.Error("seed admin", "error", err)
			os.Exit(1)
		}
	}

	faker := gofakeit.New(uint64(time.Now().UnixNano()))

	practitionerIDs, err := seedPractitioners(ctx, identitySvc, availabilitySvc, faker, *practitioners, logger)
	if err != nil {
		logger.Error("seed practitioners", "error", err)
		os.Exit(1)
	}
	clientIDs, err := seedClients(ctx, identitySvc, faker, *clients, logger)
	if err != nil {
		logger.Error("seed clients", "error", err)
		os.Exit(1)
	}
	created, err := seedAppointments(ctx, repo, faker, practitionerIDs, clientIDs, *appointments)
	if err != nil {
		logger.Error("seed appointments", "error", err)
		os.Exit(1)
	}

	logger.Info("seed complete",
		"practitioners", len(practitionerIDs),
		"clients", len(clientIDs),
		"appointments", created,
		"password", seedPassword,
	)
}

func seedPractitioners(ctx context.Context, svc *identity.Service, avail *availability.Service, faker *gofakeit.Faker, count int, logger *logging.Logger) ([]int64, error) {
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		acct, err := svc.CreateAccount(ctx, identity.NewAccount{
			Role:           identity.RolePractitioner,
			Name:           "Dr. " + faker.Name(),
			Email:          fmt.Sprintf("doctor%d@clinic.local", i+1),
			Password:       seedPassword,
			Specialization: specializations[faker.Number(0, len(specializations)-1)],
			Bio:            faker.JobTitle(),
		})
		if errors.Is(err, identity.ErrDuplicateEmail) {
			continue
		}
		if err != nil {
			return nil, err
		}
		p, err := svc.PractitionerByAccount(ctx, acct.ID)
		if err != nil {
			return nil, err
		}
		if err := avail.Set(ctx, p.Profile.ID, weekAvailability(time.Now())); err != nil {
			return nil, err
		}
		ids = append(ids, p.Profile.ID)
	}
	logger.Info("practitioners seeded", "count", len(ids))
	return ids, nil
}

func seedClients(ctx context.Context, svc *identity.Service, faker *gofakeit.Faker, count int, logger *logging.Logger) ([]int64, error) {
	ids := make([]int64, 0, count)
	for i := 0; i < count; i++ {
		age := faker.Number(18, 90)
		acct, err := svc.CreateAccount(ctx, identity.NewAccount{
			Role:           identity.RoleClient,
			Name:           faker.Name(),
			Email:          fmt.Sprintf("patient%d@clinic.local", i+1),
			Password:       seedPassword,
			Age:            &age,
			Address:        faker.Address().Address,
			MedicalHistory: histories[faker.Number(0, len(histories)-1)],
		})
		if errors.Is(err, identity.ErrDuplicateEmail) {
			continue
		}
		if err != nil {
			return nil, err
		}
		c, err := svc.ClientByAccount(ctx, acct.ID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, c.Profile.ID)
		if (i+1)%100 == 0 {
			logger.Info("clients seeded", "progress", fmt.Sprintf("%d/%d", i+1, count))
		}
	}
	return ids, nil
}

// seedAppointments spreads bookings over the next two weeks on half-hour
// boundaries. Collisions with an existing booking are skipped.
func seedAppointments(ctx context.Context, repo *appointment.PgRepository, faker *gofakeit.Faker, practitionerIDs, clientIDs []int64, count int) (int, error) {
	if len(practitionerIDs) == 0 || len(clientIDs) == 0 {
		return 0, nil
	}
	base := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	statuses := []appointment.Status{
		appointment.StatusScheduled,
		appointment.StatusScheduled,
		appointment.StatusScheduled,
		appointment.StatusCompleted,
		appointment.StatusCancelled,
	}

	created := 0
	for i := 0; i < count; i++ {
		at := base.Add(time.Duration(faker.Number(0, 13)) * 24 * time.Hour).
			Add(time.Duration(faker.Number(6, 14)) * time.Hour).
			Add(time.Duration(faker.Number(0, 1)) * 30 * time.Minute)

		_, err := repo.Create(ctx, appointment.Appointment{
			PractitionerID:  practitionerIDs[faker.Number(0, len(practitionerIDs)-1)],
			ClientID:        clientIDs[faker.Number(0, len(clientIDs)-1)],
			AppointmentDate: at,
			Status:          statuses[faker.Number(0, len(statuses)-1)],
			Notes:           notes[faker.Number(0, len(notes)-1)],
		})
		if errors.Is(err, appointment.ErrSlotTaken) {
			continue
		}
		if err != nil {
			return created, err
		}
		created++
	}
	return created, nil
}

func weekAvailability(from time.Time) availability.Document {
	doc := make(availability.Document, 0, 7)
	for d := 1; d <= 7; d++ {
		day := from.AddDate(0, 0, d)
		if day.Weekday() == time.Sunday {
			continue
		}
		doc = append(doc, availability.Day{
			Date:  day.Format("2006-01-02"),
			Slots: availability.NewSlots("09:00-12:00", "14:00-17:00"),
		})
	}
	return doc
}
