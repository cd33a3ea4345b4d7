package main

import (
	"context"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"

	"github.com/hackgods/clinic-appointment-assistant/internal/config"
	"github.com/hackgods/clinic-appointment-assistant/internal/db"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

var (
	doctors   = []string{"Dr. Kumar", "Dr. Mehta", "Dr. Sharma", "Dr. Singh", "Dr. Patel"}
	carriers  = []string{"Aetna", "Blue Cross", "Cigna", "UnitedHealth", "Humana"}
	locations = []string{"New York", "Los Angeles", "Chicago", "Houston", "Phoenix", "Philadelphia", "San Antonio", "San Diego", "Dallas", "San Jose"}
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel).With("service", "seed")
	if cfg.StoreBackend != config.StoreBackendPostgres {
		logger.Error("seeding needs STORE_BACKEND=postgres")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := db.Connect(ctx, cfg.PostgresDSN, db.PoolOptions{AppName: "clinic-seed", MaxConns: 2, Logger: logger})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	repo := records.NewPgRepository(pool)

	patients := getInt("SEED_PATIENTS", 50)
	days := getInt("SEED_DAYS", 14)

	if err := seedPatients(ctx, repo, patients, logger); err != nil {
		logger.Error("seed patients", "error", err)
		os.Exit(1)
	}

	today := records.DateOf(time.Now().In(cfg.Timezone))
	slots := availability(today, days)
	inserted, err := repo.InsertSlots(ctx, slots)
	if err != nil {
		logger.Error("seed availability", "error", err)
		os.Exit(1)
	}

	logger.Info("seed complete", "patients", patients, "slots_inserted", inserted, "slots_skipped", len(slots)-inserted)
}

func seedPatients(ctx context.Context, repo records.Repository, count int, logger *logging.Logger) error {
	now := time.Now()
	for i := 0; i < count; i++ {
		dob := gofakeit.DateRange(now.AddDate(-80, 0, 0), now.AddDate(-18, 0, 0))
		ptype := records.PatientNew
		if gofakeit.Bool() {
			ptype = records.PatientReturning
		}
		_, err := repo.UpsertPatient(ctx, records.Patient{
			Name:             gofakeit.FirstName() + " " + gofakeit.LastName(),
			DateOfBirth:      records.FormatDate(dob),
			Email:            gofakeit.Email(),
			Phone:            gofakeit.Numerify("###-###-####"),
			DoctorPreference: gofakeit.RandomString(doctors),
			Location:         gofakeit.RandomString(locations),
			InsuranceCarrier: gofakeit.RandomString(carriers),
			MemberID:         gofakeit.Lexify("??") + gofakeit.Numerify("#####"),
			GroupNumber:      gofakeit.Numerify("GRP###"),
			PatientType:      ptype,
		})
		if err != nil {
			return err
		}
		if (i+1)%25 == 0 {
			logger.Info("patients seeded", "done", i+1, "total", count)
		}
	}
	return nil
}

// availability lays out 30-minute slots from 09:00 to 16:30 on weekdays.
// Roughly a third are left out so schedules look partly taken.
func availability(from time.Time, days int) []records.AvailabilitySlot {
	var out []records.AvailabilitySlot
	for d := 0; d < days; d++ {
		date := from.AddDate(0, 0, d)
		if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
			continue
		}
		for _, doctor := range doctors {
			for m := 9 * 60; m <= 16*60+30; m += records.SlotMinutes {
				if gofakeit.Number(1, 3) == 1 {
					continue
				}
				out = append(out, records.AvailabilitySlot{
					Doctor:   doctor,
					Date:     date,
					TimeSlot: records.FormatClock(m),
					Status:   records.SlotAvailable,
				})
			}
		}
	}
	return out
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}
