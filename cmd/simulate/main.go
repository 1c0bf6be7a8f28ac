// simulate drives concurrent booking traffic against a running api-server to
// exercise slot contention: many patients race for a small set of doctor-day
// slots, and the report shows exactly one winner per slot.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/careflow/clinic-booking/internal/appointment"
	"github.com/careflow/clinic-booking/internal/config"
	"github.com/careflow/clinic-booking/internal/db"
)

type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	PatientLimit int
	DoctorLimit  int
	PostgresDSN  string
	JWTSecret    string
}

type patient struct {
	ID    uuid.UUID
	Email string
	Token string
}

type doctor struct {
	ID         uuid.UUID
	Department string
}

type DataPool struct {
	Patients []patient
	Doctors  []doctor
	Slots    []string // time-of-day marks to fight over
	Date     string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case status == http.StatusCreated || status == http.StatusOK:
		atomic.AddInt64(&om.Success, 1)
	case status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0, 0
	}

	latencies := make([]time.Duration, len(om.latencies))
	copy(latencies, om.latencies)
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	avg = sum / time.Duration(len(latencies))

	p95Idx := len(latencies) * 95 / 100
	if p95Idx >= len(latencies) {
		p95Idx = len(latencies) - 1
	}
	return avg, latencies[p95Idx]
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("simulator starting")

	cfg := loadSimConfig()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pgPool.Close()

	pool, err := loadDataPool(ctx, pgPool, cfg)
	if err != nil {
		log.Fatalf("load data pool: %v", err)
	}
	log.Printf("loaded: %d patients, %d doctors, contending for %d slots on %s",
		len(pool.Patients), len(pool.Doctors), len(pool.Slots), pool.Date)

	var bookings OperationMetrics
	client := &http.Client{Timeout: 10 * time.Second}

	deadline := time.Now().Add(cfg.Duration)
	var wg sync.WaitGroup
	for w := 0; w < cfg.Workers; w++ {
		wg.Add(1)
		go func(seed int64) {
			defer wg.Done()
			rng := rand.New(rand.NewSource(seed))
			for time.Now().Before(deadline) {
				p := pool.Patients[rng.Intn(len(pool.Patients))]
				d := pool.Doctors[rng.Intn(len(pool.Doctors))]
				slot := pool.Slots[rng.Intn(len(pool.Slots))]

				start := time.Now()
				status := bookOnce(client, cfg.APIBaseURL, p, d, pool.Date, slot)
				bookings.Record(time.Since(start), status)
			}
		}(int64(w) + time.Now().UnixNano())
	}
	wg.Wait()

	avg, p95 := bookings.Stats()
	log.Printf("bookings: total=%d success=%d conflict=%d error=%d avg=%s p95=%s",
		bookings.Total, bookings.Success, bookings.Conflict, bookings.Error, avg, p95)

	expected := int64(len(pool.Doctors) * len(pool.Slots))
	if bookings.Success > expected {
		log.Printf("INVARIANT VIOLATED: %d successes for %d distinct slots", bookings.Success, expected)
		os.Exit(1)
	}
	log.Printf("conflict invariant held: %d successes <= %d distinct slots", bookings.Success, expected)
}

func bookOnce(client *http.Client, baseURL string, p patient, d doctor, date, slot string) int {
	body, _ := json.Marshal(map[string]any{
		"department":      d.Department,
		"doctorId":        d.ID.String(),
		"appointmentDate": date,
		"appointmentTime": slot,
	})

	req, err := http.NewRequest(http.MethodPost, baseURL+"/api/appointments", bytes.NewReader(body))
	if err != nil {
		return 0
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.Token)

	resp, err := client.Do(req)
	if err != nil {
		return 0
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode
}

func loadSimConfig() SimConfig {
	baseCfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load base config: %v", err)
	}
	if baseCfg.JWTSecret == "" {
		log.Fatal("JWT_SECRET is required to mint simulation tokens")
	}

	return SimConfig{
		APIBaseURL:   getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:     getDurationEnv("SIM_DURATION", 30*time.Second),
		Workers:      getIntEnv("SIM_WORKERS", 10),
		PatientLimit: getIntEnv("SIM_PATIENT_LIMIT", 200),
		DoctorLimit:  getIntEnv("SIM_DOCTOR_LIMIT", 3),
		PostgresDSN:  baseCfg.PostgresDSN,
		JWTSecret:    baseCfg.JWTSecret,
	}
}

func loadDataPool(ctx context.Context, pool *pgxpool.Pool, cfg SimConfig) (*DataPool, error) {
	dp := &DataPool{}

	rows, err := pool.Query(ctx, `
		SELECT id, email FROM users WHERE role = 'patient' LIMIT $1
	`, cfg.PatientLimit)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p patient
		if err := rows.Scan(&p.ID, &p.Email); err != nil {
			return nil, err
		}
		p.Token, err = mintToken(cfg.JWTSecret, p.ID, p.Email)
		if err != nil {
			return nil, fmt.Errorf("mint token: %w", err)
		}
		dp.Patients = append(dp.Patients, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients found; run the seed tool first")
	}

	docRows, err := pool.Query(ctx, `
		SELECT id, department FROM users WHERE role = 'doctor' AND is_active LIMIT $1
	`, cfg.DoctorLimit)
	if err != nil {
		return nil, fmt.Errorf("load doctors: %w", err)
	}
	defer docRows.Close()

	for docRows.Next() {
		var d doctor
		if err := docRows.Scan(&d.ID, &d.Department); err != nil {
			return nil, err
		}
		dp.Doctors = append(dp.Doctors, d)
	}
	if err := docRows.Err(); err != nil {
		return nil, err
	}
	if len(dp.Doctors) == 0 {
		return nil, fmt.Errorf("no doctors found; run the seed tool first")
	}

	// Tomorrow's morning slots: narrow on purpose so workers collide.
	dp.Date = time.Now().AddDate(0, 0, 1).Format(time.DateOnly)
	dp.Slots = appointment.Window{OpenHour: 9, CloseHour: 10, IntervalMinutes: 30}.Marks()

	return dp, nil
}

func mintToken(secret string, id uuid.UUID, email string) (string, error) {
	claims := jwt.MapClaims{
		"sub":   id.String(),
		"email": email,
		"role":  "patient",
		"exp":   time.Now().Add(2 * time.Hour).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getIntEnv(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDurationEnv(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
