package main

import (
	"log"
	"log/slog"
	"time"

	"github.com/joho/godotenv"

	"consultassist/internal/config"
	"consultassist/internal/util"
	"consultassist/pkg/domain"
	"consultassist/pkg/store"
)

type seedConsultant struct {
	name      string
	email     string
	serviceID int64
	weekdays  []time.Weekday
}

var weekdayShift = []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday}
var weekendShift = []time.Weekday{time.Saturday, time.Sunday}

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	util.InitLogger(cfg.LogLevel)

	st, err := store.NewGormStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to init store: %v", err)
	}
	defer st.Close()

	count, err := st.ServiceCount()
	if err != nil {
		log.Fatalf("failed to inspect services: %v", err)
	}
	if count > 0 {
		slog.Info("data already seeded, skipping population", "services", count)
		return
	}

	services := []domain.Service{
		{Name: "Technology", Description: "Consulting on cloud, AI and software implementation."},
		{Name: "Sales", Description: "Consulting on sales strategy, CRM and team training."},
		{Name: "Financial", Description: "Consulting on financial planning, investment, and risk assessment."},
		{Name: "Legal", Description: "Consulting on corporate law, compliance, and contract review."},
	}
	for _, svc := range services {
		if _, err := st.CreateService(svc); err != nil {
			log.Fatalf("failed to seed service %s: %v", svc.Name, err)
		}
	}

	consultants := []seedConsultant{
		{"Josh Matthews", "josh111@consult.com", 1, weekdayShift},
		{"James Johnson", "johson123@consult.com", 2, weekdayShift},
		{"Chris Gates", "gateschris@consult.com", 3, weekdayShift},
		{"David Kim", "david121@consult.com", 4, weekdayShift},
		{"Sarah Jones", "sarah234@consult.com", 2, weekdayShift},
		{"Christina Jaymes", "christina121@consult.com", 3, weekdayShift},
		{"Emilie Johnson", "emilie111@consult.com", 1, weekendShift},
		{"Amanda Baldwin", "amanda101@consult.com", 4, weekendShift},
	}

	// Two daily work blocks around a lunch break.
	shifts := [][2]int{{10 * 60, 13 * 60}, {14 * 60, 19 * 60}}

	for _, c := range consultants {
		id, err := st.CreateConsultant(domain.Consultant{Name: c.name, Email: c.email, ServiceID: c.serviceID})
		if err != nil {
			log.Fatalf("failed to seed consultant %s: %v", c.name, err)
		}
		for _, wd := range c.weekdays {
			for _, span := range shifts {
				_, err := st.CreateAvailabilityBlock(domain.AvailabilityBlock{
					ConsultantID: id,
					Weekday:      wd,
					StartMinute:  span[0],
					EndMinute:    span[1],
				})
				if err != nil {
					log.Fatalf("failed to seed availability for %s: %v", c.name, err)
				}
			}
		}
	}

	slog.Info("database seeded",
		"services", len(services),
		"consultants", len(consultants),
	)
}
