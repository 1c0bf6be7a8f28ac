package main

import (
	"context"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow/clinic-booking/internal/appointment"
	"github.com/careflow/clinic-booking/internal/db"
)

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

	gofakeit.Seed(time.Now().UnixNano())

	if err := seedStaff(context.Background(), pool); err != nil {
		log.Fatalf("seed staff: %v", err)
	}
	if err := seedDoctors(context.Background(), pool, 8); err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, 500); err != nil {
		log.Fatalf("seed patients: %v", err)
	}

	log.Println("seed complete")
}

func seedStaff(ctx context.Context, pool *pgxpool.Pool) error {
	staffRoles := []appointment.Role{
		appointment.RoleAdmin,
		appointment.RoleNurse,
		appointment.RoleReceptionist,
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, role := range staffRoles {
		_, err := tx.Exec(ctx, `
			INSERT INTO users (id, first_name, last_name, email, phone, role, is_active, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, true, now(), now())
		`, uuid.New(), gofakeit.FirstName(), gofakeit.LastName(),
			string(role)+"@clinic.example", gofakeit.Phone(), string(role))
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Println("staff seeded")
	return nil
}

// seedDoctors creates perDepartment active doctors in every department.
func seedDoctors(ctx context.Context, pool *pgxpool.Pool, perDepartment int) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	count := 0
	for _, dept := range appointment.Departments() {
		for i := 0; i < perDepartment; i++ {
			_, err := tx.Exec(ctx, `
				INSERT INTO users (id, first_name, last_name, email, phone, role, department, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, 'doctor', $6, true, now(), now())
			`, uuid.New(), gofakeit.FirstName(), gofakeit.LastName(),
				gofakeit.Email(), gofakeit.Phone(), string(dept))
			if err != nil {
				return err
			}
			count++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}
	log.Printf("doctors seeded: %d across %d departments", count, len(appointment.Departments()))
	return nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 100

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
				INSERT INTO users (id, first_name, last_name, email, phone, role, is_active, created_at, updated_at)
				VALUES ($1, $2, $3, $4, $5, 'patient', true, now(), now())
			`, uuid.New(), gofakeit.FirstName(), gofakeit.LastName(),
				gofakeit.Email(), gofakeit.Phone())
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
