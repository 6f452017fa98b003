package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/medagenda/clinic-scheduling/internal/db"
	"github.com/medagenda/clinic-scheduling/internal/timeslot"
)

// Seeds a demo clinic: specialties, doctors, patients, and two weeks of
// weekday availability windows per doctor. Appointments are left to be
// booked through the API.
func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("seed starting")

	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		log.Fatal("POSTGRES_DSN is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, dsn)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	if err := db.EnsureSchema(ctx, pool); err != nil {
		log.Fatalf("ensure schema: %v", err)
	}

	gofakeit.Seed(time.Now().UnixNano())

	bg := context.Background()

	specialtyIDs, err := seedSpecialties(bg, pool)
	if err != nil {
		log.Fatalf("seed specialties: %v", err)
	}
	doctorIDs, err := seedDoctors(bg, pool, specialtyIDs, 50)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(bg, pool, 5000); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedWindows(bg, pool, doctorIDs, 14); err != nil {
		log.Fatalf("seed availability windows: %v", err)
	}

	log.Println("seed complete")
}

func seedSpecialties(ctx context.Context, pool *pgxpool.Pool) ([]uuid.UUID, error) {
	names := []string{
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

	log.Printf("seeding %d specialties", len(names))

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, len(names))
	for _, name := range names {
		id := uuid.New()
		_, err := tx.Exec(ctx, `
			INSERT INTO specialties (id, name)
			VALUES ($1, $2)
			ON CONFLICT (name) DO NOTHING
		`, id, name)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, specialtyIDs []uuid.UUID, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		spec := specialtyIDs[gofakeit.Number(0, len(specialtyIDs)-1)]

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, specialty_id)
			VALUES ($1, $2, $3)
		`, id, "Dr. "+gofakeit.Name(), spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, tx.Commit(ctx)
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, email)
				VALUES ($1, $2, $3)
			`, uuid.New(), gofakeit.Name(), gofakeit.Email())
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	return nil
}

// seedWindows gives each doctor a morning and an afternoon window per
// weekday over the next `days` days. Slot durations vary per doctor so
// the computed grids differ across the clinic.
func seedWindows(ctx context.Context, pool *pgxpool.Pool, doctorIDs []uuid.UUID, days int) error {
	log.Printf("seeding availability windows for %d doctors over %d days", len(doctorIDs), days)

	durations := []int{15, 20, 30, 60}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	total := 0
	for _, doctorID := range doctorIDs {
		slotDur := durations[gofakeit.Number(0, len(durations)-1)]

		for d := 1; d <= days; d++ {
			day := time.Now().AddDate(0, 0, d)
			if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
				continue
			}
			date := day.Format("2006-01-02")

			morning, _ := timeslot.ParseClock("09:00")
			noon, _ := timeslot.ParseClock("13:00")
			afternoon, _ := timeslot.ParseClock("15:00")
			evening, _ := timeslot.ParseClock("19:00")

			for _, w := range [][2]int{{morning, noon}, {afternoon, evening}} {
				_, err := tx.Exec(ctx, `
					INSERT INTO availability_windows
						(id, doctor_id, date, start_min, end_min, slot_duration_min, is_active)
					VALUES ($1, $2, $3, $4, $5, $6, true)
				`, uuid.New(), doctorID, date, w[0], w[1], slotDur)
				if err != nil {
					return err
				}
				total++
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	log.Printf("availability windows seeded: %d", total)
	return nil
}
