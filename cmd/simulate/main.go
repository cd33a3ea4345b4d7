package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hackgods/clinic-appointment-assistant/internal/config"
	"github.com/hackgods/clinic-appointment-assistant/internal/db"
	"github.com/hackgods/clinic-appointment-assistant/internal/logging"
	"github.com/hackgods/clinic-appointment-assistant/internal/records"
)

// SimConfig drives a load run against a live api-server. Booking workers
// deliberately collide on the same offers to exercise slot locking.
type SimConfig struct {
	APIBaseURL   string
	Duration     time.Duration
	Workers      int
	Days         int
	BookingRatio float64
	ConfirmRatio float64
	CancelRatio  float64
	ChatRatio    float64
}

type offer struct {
	Doctor    string `json:"doctor"`
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

type patientRef struct {
	ID   int64
	Type records.PatientType
}

type DataPool struct {
	Patients []patientRef
	Offers   []offer

	mu           sync.RWMutex
	appointments []int64
}

func (dp *DataPool) AddAppointment(id int64) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, id)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (int64, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return 0, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, status int, err error) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case err == nil && status >= 200 && status < 300:
		atomic.AddInt64(&om.Success, 1)
	case err == nil && status == http.StatusConflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentiles() (avg, p50, p95, p99 time.Duration) {
	om.mu.Lock()
	latencies := append([]time.Duration(nil), om.latencies...)
	om.mu.Unlock()

	if len(latencies) == 0 {
		return 0, 0, 0, 0
	}
	sort.Slice(latencies, func(i, j int) bool { return latencies[i] < latencies[j] })

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}
	at := func(pct int) time.Duration {
		idx := len(latencies) * pct / 100
		if idx >= len(latencies) {
			idx = len(latencies) - 1
		}
		return latencies[idx]
	}
	return sum / time.Duration(len(latencies)), at(50), at(95), at(99)
}

type Metrics struct {
	Booking OperationMetrics
	Confirm OperationMetrics
	Cancel  OperationMetrics
	Chat    OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	client  *http.Client
	logger  *logging.Logger
	metrics Metrics
}

func main() {
	baseCfg, err := config.Load()
	if err != nil {
		logging.Default().Error("config load error", "error", err)
		os.Exit(1)
	}
	logger := logging.New(baseCfg.LogLevel).With("service", "simulate")
	if baseCfg.StoreBackend != config.StoreBackendPostgres {
		logger.Error("the simulator reads patients from Postgres; set STORE_BACKEND=postgres")
		os.Exit(1)
	}

	cfg := loadConfig()
	logger.Info("simulator starting", "duration", cfg.Duration, "workers", cfg.Workers,
		"booking", cfg.BookingRatio, "confirm", cfg.ConfirmRatio, "cancel", cfg.CancelRatio, "chat", cfg.ChatRatio)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pgPool, err := db.Connect(ctx, baseCfg.PostgresDSN, db.PoolOptions{AppName: "clinic-simulate", MaxConns: 2, Logger: logger})
	if err != nil {
		logger.Error("connect postgres", "error", err)
		os.Exit(1)
	}
	defer pgPool.Close()

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		logger: logger,
	}
	sim.pool, err = sim.loadDataPool(ctx, records.NewPgRepository(pgPool), records.DateOf(time.Now().In(baseCfg.Timezone)))
	if err != nil {
		logger.Error("load data pool", "error", err)
		os.Exit(1)
	}
	logger.Info("data loaded", "patients", len(sim.pool.Patients), "offers", len(sim.pool.Offers))

	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Duration:     getDuration("SIM_DURATION", 30*time.Second),
		Workers:      getInt("SIM_WORKERS", 10),
		Days:         getInt("SIM_DAYS", 7),
		BookingRatio: getFloat("SIM_BOOKING_RATIO", 0.6),
		ConfirmRatio: getFloat("SIM_CONFIRM_RATIO", 0.2),
		CancelRatio:  getFloat("SIM_CANCEL_RATIO", 0.1),
		ChatRatio:    getFloat("SIM_CHAT_RATIO", 0.1),
	}

	total := cfg.BookingRatio + cfg.ConfirmRatio + cfg.CancelRatio + cfg.ChatRatio
	if total > 0 {
		cfg.BookingRatio /= total
		cfg.ConfirmRatio /= total
		cfg.CancelRatio /= total
		cfg.ChatRatio /= total
	}
	return cfg
}

func (s *Simulator) loadDataPool(ctx context.Context, repo records.Repository, today time.Time) (*DataPool, error) {
	patients, err := repo.ListPatients(ctx)
	if err != nil {
		return nil, fmt.Errorf("load patients: %w", err)
	}
	dp := &DataPool{}
	for _, p := range patients {
		dp.Patients = append(dp.Patients, patientRef{ID: p.ID, Type: p.PatientType})
	}

	// Offers come from the API so the run sees exactly what patients see.
	for d := 1; d <= s.config.Days; d++ {
		date := records.FormatDate(today.AddDate(0, 0, d))
		var offers []offer
		if err := s.getJSON(ctx, "/slots?"+url.Values{"date": {date}}.Encode(), &offers); err != nil {
			return nil, fmt.Errorf("load slots for %s: %w", date, err)
		}
		dp.Offers = append(dp.Offers, offers...)
	}

	if len(dp.Patients) == 0 {
		return nil, fmt.Errorf("no patients loaded, run cmd/seed first")
	}
	if len(dp.Offers) == 0 {
		return nil, fmt.Errorf("no open slots in the next %d days", s.config.Days)
	}
	return dp, nil
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
	s.logger.Info("simulation complete")
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
	for ctx.Err() == nil {
		r := rng.Float64()
		switch {
		case r < s.config.BookingRatio:
			s.doBooking(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio:
			s.doConfirm(ctx, rng)
		case r < s.config.BookingRatio+s.config.ConfirmRatio+s.config.CancelRatio:
			s.doCancel(ctx, rng)
		default:
			s.doChat(ctx, rng)
		}
	}
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	o := s.pool.Offers[rng.Intn(len(s.pool.Offers))]
	p := s.pool.Patients[rng.Intn(len(s.pool.Patients))]

	var created struct {
		ID int64 `json:"id"`
	}
	start := time.Now()
	status, err := s.postJSON(ctx, "/appointments", map[string]any{
		"patient_id":       p.ID,
		"doctor":           o.Doctor,
		"date":             o.Date,
		"start_time":       o.StartTime,
		"duration_minutes": records.DurationFor(p.Type),
	}, &created)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Booking.Record(time.Since(start), status, err)
	if status == http.StatusCreated && created.ID > 0 {
		s.pool.AddAppointment(created.ID)
	}
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, err := s.postJSON(ctx, fmt.Sprintf("/appointments/%d/confirm", id), nil, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Confirm.Record(time.Since(start), status, err)
}

func (s *Simulator) doCancel(ctx context.Context, rng *rand.Rand) {
	id, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	start := time.Now()
	status, err := s.postJSON(ctx, fmt.Sprintf("/appointments/%d/cancel", id), map[string]string{"reason": "load test"}, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Cancel.Record(time.Since(start), status, err)
}

// doChat runs the opening turn of a conversation, which exercises session
// storage without booking anything.
func (s *Simulator) doChat(ctx context.Context, rng *rand.Rand) {
	start := time.Now()
	status, err := s.postJSON(ctx, "/chat", map[string]string{"message": fmt.Sprintf("Hi, my name is Load Tester %d", rng.Intn(1000))}, nil)
	if ctx.Err() != nil {
		return
	}
	s.metrics.Chat.Record(time.Since(start), status, err)
}

func (s *Simulator) postJSON(ctx context.Context, path string, body, out any) (int, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return 0, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	return s.do(req, out)
}

func (s *Simulator) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+path, nil)
	if err != nil {
		return err
	}
	status, err := s.do(req, out)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}

func (s *Simulator) do(req *http.Request, out any) (int, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	if out != nil && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, err
		}
	}
	return resp.StatusCode, nil
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Duration: %s\n", s.config.Duration)
	fmt.Printf("Workers: %d\n\n", s.config.Workers)

	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("Confirm", &s.metrics.Confirm)
	printOperationReport("Cancel", &s.metrics.Cancel)
	printOperationReport("Chat", &s.metrics.Chat)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}
	pct := func(n int64) float64 { return float64(n) / float64(total) * 100 }

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)
	avg, p50, p95, p99 := om.Percentiles()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, pct(success))
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, pct(conflict))
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, pct(failed))
	}
	fmt.Printf("  Latency: avg=%s p50=%s p95=%s p99=%s\n\n",
		avg.Round(time.Millisecond), p50.Round(time.Millisecond), p95.Round(time.Millisecond), p99.Round(time.Millisecond))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return def
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
