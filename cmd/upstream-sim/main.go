// upstream-sim serves a fake clinic backend over the action/envelope
// contract, for running the agenda server and worker locally. Payloads mix
// the canonical and legacy wire shapes the way the real backend does.
package main

import (
	"encoding/json"
	"fmt"
	"log"
	"math/rand"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

type envelope struct {
	Success bool     `json:"success"`
	Data    any      `json:"data,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

type patientRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// canonicalEntry is the current backend shape.
type canonicalEntry struct {
	ID             string      `json:"id"`
	Patient        *patientRef `json:"patient,omitempty"`
	Date           string      `json:"date"`
	StartTime      string      `json:"start_time"`
	EndTime        string      `json:"end_time"`
	Status         string      `json:"status"`
	Kind           string      `json:"kind"`
	Origin         string      `json:"origin"`
	AllowsOverbook bool        `json:"allows_overbook"`
	Notes          string      `json:"notes,omitempty"`
}

// legacyEntry is the pre-migration shape with combined timestamps.
type legacyEntry struct {
	ID          string      `json:"id"`
	Paciente    *patientRef `json:"paciente,omitempty"`
	Inicio      string      `json:"inicio"`
	Fim         string      `json:"fim"`
	Status      string      `json:"status"`
	Tipo        string      `json:"tipo"`
	Origin      string      `json:"origin"`
	Observacoes string      `json:"observacoes,omitempty"`
}

var statusLabels = []string{
	"Agendado", "CONFIRMADO", "confirmado", "Em Atendimento",
	"atendido", "ATENDIDO", "cancelado", "faltou", "não compareceu",
}

var origins = []string{"front-desk", "clinician", "system", "online-booking"}

type simulator struct {
	patients []patientRef
	failRate float64
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Println("upstream-sim starting")

	gofakeit.Seed(time.Now().UnixNano())

	port := getEnv("SIM_PORT", "9090")
	failRate := getFloat("SIM_FAIL_RATE", 0)

	sim := &simulator{failRate: failRate}
	for i := 0; i < 40; i++ {
		sim.patients = append(sim.patients, patientRef{
			ID:   uuid.NewString(),
			Name: gofakeit.Name(),
		})
	}

	r := chi.NewRouter()
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Post("/api/{action}", sim.handleAction)

	log.Printf("listening on :%s fail_rate=%.2f", port, failRate)
	if err := http.ListenAndServe(":"+port, r); err != nil {
		log.Fatalf("http server error: %v", err)
	}
}

func (s *simulator) handleAction(w http.ResponseWriter, r *http.Request) {
	if s.failRate > 0 && rand.Float64() < s.failRate {
		writeJSON(w, http.StatusOK, envelope{Success: false, Errors: []string{"simulated backend failure"}})
		return
	}

	action := chi.URLParam(r, "action")
	switch action {
	case "agenda.list":
		var req struct {
			From string `json:"from"`
			To   string `json:"to"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusOK, envelope{Success: false, Errors: []string{"invalid payload"}})
			return
		}
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: s.agendaBetween(req.From, req.To)})
	case "agenda.config":
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
			"start_of_day": "08:00",
			"end_of_day":   "18:00",
			"step_minutes": 15,
		}})
	case "patients.list":
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: s.patients})
	case "records.list":
		writeJSON(w, http.StatusOK, envelope{Success: true, Data: s.records()})
	default:
		writeJSON(w, http.StatusOK, envelope{Success: false, Errors: []string{"unknown action " + action}})
	}
}

// agendaBetween generates a plausible agenda for every day in [from, to],
// roughly one entry per hour, one in four in the legacy shape, plus one
// blocked lunch slot per day.
func (s *simulator) agendaBetween(from, to string) []any {
	start, err := time.Parse("2006-01-02", from)
	if err != nil {
		start = time.Now()
	}
	end, err := time.Parse("2006-01-02", to)
	if err != nil {
		end = start
	}

	var entries []any
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		date := day.Format("2006-01-02")

		for hour := 8; hour < 18; hour++ {
			if gofakeit.Bool() {
				continue
			}

			patient := s.patients[rand.Intn(len(s.patients))]
			status := statusLabels[rand.Intn(len(statusLabels))]
			origin := origins[rand.Intn(len(origins))]
			startClock := fmt.Sprintf("%02d:00", hour)
			endClock := fmt.Sprintf("%02d:30", hour)

			if rand.Intn(4) == 0 {
				entries = append(entries, legacyEntry{
					ID:          uuid.NewString(),
					Paciente:    &patient,
					Inicio:      fmt.Sprintf("%sT%s:00", date, startClock),
					Fim:         fmt.Sprintf("%sT%s:00", date, endClock),
					Status:      status,
					Tipo:        "CONSULTA",
					Origin:      origin,
					Observacoes: gofakeit.Sentence(6),
				})
				continue
			}

			entries = append(entries, canonicalEntry{
				ID:             uuid.NewString(),
				Patient:        &patient,
				Date:           date,
				StartTime:      startClock,
				EndTime:        endClock,
				Status:         status,
				Kind:           "appointment",
				Origin:         origin,
				AllowsOverbook: rand.Intn(10) == 0,
				Notes:          gofakeit.Sentence(6),
			})
		}

		entries = append(entries, legacyEntry{
			ID:     uuid.NewString(),
			Inicio: date + "T12:00:00",
			Fim:    date + "T13:00:00",
			Tipo:   "BLOQUEIO",
			Origin: "system",
		})
	}

	return entries
}

func (s *simulator) records() []any {
	var records []any
	for _, p := range s.patients {
		records = append(records, map[string]any{
			"id":         uuid.NewString(),
			"patient_id": p.ID,
			"summary":    gofakeit.Sentence(10),
			"created_at": gofakeit.DateRange(time.Now().AddDate(-1, 0, 0), time.Now()).Format(time.RFC3339),
		})
	}
	return records
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}
