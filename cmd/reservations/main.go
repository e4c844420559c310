package main

import (
	"roomly/internal/reservations/availability"
	"roomly/internal/reservations/events"
	"roomly/internal/reservations/handler"
	"roomly/internal/reservations/repository"
	"roomly/internal/reservations/service"
	"roomly/internal/reservations/validator"
	"roomly/pkg/app"
	"roomly/pkg/config"
)

const ServiceName = "reservations"

func main() {
	cfg := config.Load(ServiceName)

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal("Invalid configuration", "error", err)
	}

	cfg.LogConfiguration()

	cfg.Log.Info("Starting Reservations service")
	cfg.SetStore()
	cfg.SetRedis()

	repo := initRepository(cfg)

	publisher, err := events.New(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err, "events_driver", cfg.EventsDriver)
	}

	reservationValidator := validator.NewReservationValidator(cfg.Log)
	reservationService := service.NewReservationService(repo, reservationValidator, publisher, cfg)
	availabilityService := availability.NewService(repo, reservationValidator, cfg)

	serverApp := app.NewApplication()
	serverApp.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.OnShutdown(cfg.GracefulShutdown)
	serverApp.SetApp(
		cfg,
		handler.NewHealthHandler(repo, cfg.Log),
		handler.NewReservationHandler(reservationService, availabilityService, cfg),
	)
	serverApp.Run()
}

func initRepository(cfg *config.Config) repository.ReservationRepository {
	var repo repository.ReservationRepository
	switch cfg.StoreDriver {
	case config.StorePostgres:
		repo = repository.NewPostgresReservationRepository(cfg)
	case config.StoreMongo:
		repo = repository.NewMongoReservationRepository(cfg)
	default:
		repo = repository.NewMemoryReservationRepository(cfg.LockTimeout)
	}

	cfg.Log.Info("Reservation repository initialized", "store_driver", cfg.StoreDriver)
	return repo
}
