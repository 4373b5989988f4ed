package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/joho/godotenv"

	"github.com/hackgods/clinic-booking/pkg/logging"
)

type SimConfig struct {
	APIBaseURL   string
	Password     string
	Clients      int
	Rounds       int
	ReadRatio    float64
	EmailPattern string
	LogLevel     string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	Latencies []time.Duration
	mu        sync.Mutex
}

func (om *OperationMetrics) Record(latency time.Duration, success bool, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	if success {
		atomic.AddInt64(&om.Success, 1)
	} else if conflict {
		atomic.AddInt64(&om.Conflict, 1)
	} else {
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.Latencies = append(om.Latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Stats() (avg, min, max, p50, p95 time.Duration) {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.Latencies) == 0 {
		return 0, 0, 0, 0, 0
	}

	latencies := make([]time.Duration, len(om.Latencies))
	copy(latencies, om.Latencies)
	sort.Slice(latencies, func(i, j int) bool {
		return latencies[i] < latencies[j]
	})

	var sum time.Duration
	for _, l := range latencies {
		sum += l
	}

	avg = sum / time.Duration(len(latencies))
	min = latencies[0]
	max = latencies[len(latencies)-1]
	p50 = latencies[percentileIndex(len(latencies), 50)]
	p95 = latencies[percentileIndex(len(latencies), 95)]
	return avg, min, max, p50, p95
}

func percentileIndex(n, p int) int {
	idx := n * p / 100
	if idx >= n {
		idx = n - 1
	}
	return idx
}

type Metrics struct {
	Login    OperationMetrics
	Booking  OperationMetrics
	ListOwn  OperationMetrics
	ListDocs OperationMetrics
}

type session struct {
	email string
	token string
}

// Simulator logs in a set of clients and, each round, has all of them race for
// the same practitioner and instant. Exactly one booking per round should win.
type Simulator struct {
	config  SimConfig
	client  *http.Client
	logger  *logging.Logger
	metrics Metrics

	// winners counts successful bookings per round; any value above one is a double booking.
	winners map[int]int
	mu      sync.Mutex
}

func main() {
	cfg := loadConfig()
	logger := logging.New(cfg.LogLevel)
	if err := validateConfig(cfg); err != nil {
		logger.Error("invalid config", "error", err)
		os.Exit(1)
	}

	logger.Info("simulator starting",
		"base_url", cfg.APIBaseURL,
		"clients", cfg.Clients,
		"rounds", cfg.Rounds,
	)

	sim := &Simulator{
		config:  cfg,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger,
		winners: make(map[int]int),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	sessions := sim.loginAll(ctx)
	if len(sessions) < 2 {
		logger.Error("need at least two logged in clients", "logged_in", len(sessions))
		os.Exit(1)
	}

	doctors, err := sim.practitionerIDs(ctx)
	if err != nil || len(doctors) == 0 {
		logger.Error("no practitioners available", "error", err)
		os.Exit(1)
	}

	sim.Run(ctx, sessions, doctors)
	sim.PrintReport()

	if sim.doubleBookings() > 0 {
		os.Exit(2)
	}
}

func loadConfig() SimConfig {
	_ = godotenv.Load()

	cfg := SimConfig{
		APIBaseURL:   strings.TrimRight(getEnv("SIM_API_BASE_URL", "http://localhost:8080"), "/"),
		Password:     getEnv("SIM_PASSWORD", "password123"),
		Clients:      getInt("SIM_CLIENTS", 20),
		Rounds:       getInt("SIM_ROUNDS", 50),
		ReadRatio:    getFloat("SIM_READ_RATIO", 0.3),
		EmailPattern: getEnv("SIM_EMAIL_PATTERN", "patient%d@clinic.local"),
		LogLevel:     getEnv("LOG_LEVEL", "info"),
	}
	return cfg
}

func validateConfig(cfg SimConfig) error {
	if cfg.Clients < 2 {
		return errors.New("SIM_CLIENTS must be >= 2")
	}
	if cfg.Rounds <= 0 {
		return errors.New("SIM_ROUNDS must be > 0")
	}
	if !strings.Contains(cfg.EmailPattern, "%d") {
		return errors.New("SIM_EMAIL_PATTERN must contain %d")
	}
	return nil
}

func (s *Simulator) loginAll(ctx context.Context) []session {
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		sessions []session
	)
	for i := 1; i <= s.config.Clients; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			email := fmt.Sprintf(s.config.EmailPattern, n)
			token, err := s.login(ctx, email)
			if err != nil {
				s.logger.Warn("login failed", "email", email, "error", err)
				return
			}
			mu.Lock()
			sessions = append(sessions, session{email: email, token: token})
			mu.Unlock()
		}(i)
	}
	wg.Wait()
	return sessions
}

func (s *Simulator) login(ctx context.Context, email string) (string, error) {
	body, _ := json.Marshal(map[string]string{"email": email, "password": s.config.Password})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/login", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.Login.Record(latency, false, false)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		s.metrics.Login.Record(latency, false, false)
		return "", fmt.Errorf("status %d", resp.StatusCode)
	}
	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		s.metrics.Login.Record(latency, false, false)
		return "", err
	}
	s.metrics.Login.Record(latency, true, false)
	return out.AccessToken, nil
}

func (s *Simulator) practitionerIDs(ctx context.Context) ([]int64, error) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/practitioners", nil)
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		s.metrics.ListDocs.Record(latency, false, false)
		return nil, err
	}
	defer resp.Body.Close()

	var list []struct {
		ID int64 `json:"id"`
	}
	if resp.StatusCode != http.StatusOK {
		s.metrics.ListDocs.Record(latency, false, false)
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&list); err != nil {
		s.metrics.ListDocs.Record(latency, false, false)
		return nil, err
	}
	s.metrics.ListDocs.Record(latency, true, false)

	ids := make([]int64, 0, len(list))
	for _, p := range list {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

func (s *Simulator) Run(ctx context.Context, sessions []session, doctors []int64) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	// Far enough ahead to avoid seeded bookings; minute offsets keep rounds apart.
	base := time.Now().UTC().AddDate(0, 0, 30+rng.Intn(300)).Truncate(time.Hour)

	for round := 0; round < s.config.Rounds; round++ {
		if ctx.Err() != nil {
			return
		}
		doctorID := doctors[rng.Intn(len(doctors))]
		slot := base.Add(time.Duration(round) * time.Minute)

		var wg sync.WaitGroup
		for i, sess := range sessions {
			wg.Add(1)
			go func(workerID int, sess session) {
				defer wg.Done()
				workerRng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))
				if workerRng.Float64() < s.config.ReadRatio {
					s.doListOwn(ctx, sess)
				}
				s.doBooking(ctx, round, sess, doctorID, slot)
			}(i, sess)
		}
		wg.Wait()
	}
	s.logger.Info("simulation complete", "rounds", s.config.Rounds)
}

func (s *Simulator) doBooking(ctx context.Context, round int, sess session, doctorID int64, slot time.Time) {
	body, _ := json.Marshal(map[string]any{
		"doctor_id":        doctorID,
		"appointment_date": slot.Format(time.RFC3339),
		"notes":            "load test",
	})

	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIBaseURL+"/appointments/book", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+sess.token)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	conflict := false
	if err == nil {
		defer resp.Body.Close()
		switch resp.StatusCode {
		case http.StatusCreated, http.StatusOK:
			success = true
			s.mu.Lock()
			s.winners[round]++
			s.mu.Unlock()
		case http.StatusConflict:
			conflict = true
		default:
			s.logger.Debug("unexpected booking status", "status", resp.StatusCode, "email", sess.email)
		}
	}

	s.metrics.Booking.Record(latency, success, conflict)
}

func (s *Simulator) doListOwn(ctx context.Context, sess session) {
	start := time.Now()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, s.config.APIBaseURL+"/appointments", nil)
	req.Header.Set("Authorization", "Bearer "+sess.token)

	resp, err := s.client.Do(req)
	latency := time.Since(start)

	success := false
	if err == nil {
		defer resp.Body.Close()
		success = resp.StatusCode == http.StatusOK
	}
	s.metrics.ListOwn.Record(latency, success, false)
}

func (s *Simulator) doubleBookings() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, w := range s.winners {
		if w > 1 {
			n++
		}
	}
	return n
}

func (s *Simulator) PrintReport() {
	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Println("SIMULATION REPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Clients: %d\n", s.config.Clients)
	fmt.Printf("Rounds: %d\n", s.config.Rounds)

	s.mu.Lock()
	contested := len(s.winners)
	s.mu.Unlock()
	fmt.Printf("Rounds with a winner: %d\n", contested)
	fmt.Printf("Double bookings: %d\n", s.doubleBookings())
	fmt.Println()

	printOperationReport("Login", &s.metrics.Login)
	printOperationReport("Booking", &s.metrics.Booking)
	printOperationReport("List own appointments", &s.metrics.ListOwn)
	printOperationReport("List practitioners", &s.metrics.ListDocs)
}

func printOperationReport(name string, om *OperationMetrics) {
	total := atomic.LoadInt64(&om.Total)
	if total == 0 {
		return
	}

	success := atomic.LoadInt64(&om.Success)
	conflict := atomic.LoadInt64(&om.Conflict)
	failed := atomic.LoadInt64(&om.Error)

	avg, min, max, p50, p95 := om.Stats()

	fmt.Printf("%s:\n", name)
	fmt.Printf("  Total: %d\n", total)
	fmt.Printf("  Success: %d (%.1f%%)\n", success, float64(success)/float64(total)*100)
	if conflict > 0 {
		fmt.Printf("  Conflicts: %d (%.1f%%)\n", conflict, float64(conflict)/float64(total)*100)
	}
	if failed > 0 {
		fmt.Printf("  Errors: %d (%.1f%%)\n", failed, float64(failed)/float64(total)*100)
	}
	fmt.Printf("  Latency: avg=%s min=%s max=%s p50=%s p95=%s\n",
		avg.Round(time.Millisecond), min.Round(time.Millisecond), max.Round(time.Millisecond),
		p50.Round(time.Millisecond), p95.Round(time.Millisecond))
	fmt.Println()
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
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
