package main

import (
	"breez/internal/appointments/events"
	"breez/internal/appointments/handler"
	"breez/internal/appointments/repository"
	"breez/internal/appointments/service"
	"breez/internal/appointments/validator"
	"breez/pkg/app"
	"breez/pkg/config"
)

const ServiceName = "appointments"

func main() {
	cfg := config.Load(ServiceName)

	cfg.Log.Info("Starting Appointments service")
	cfg.SetMongo()
	defer cfg.GracefulShutdown()

	appointmentService, publisher := initServices(cfg)

	serverApp := app.NewApplication(cfg)
	serverApp.SetApp(handler.NewAppointmentHandler(appointmentService, cfg.Log))
	serverApp.OnShutdown(func() {
		if err := publisher.Close(); err != nil {
			cfg.Log.Error("Failed to close event publisher", "error", err)
		}
	})
	serverApp.Run()
}

func initServices(cfg *config.Config) (service.AppointmentService, *events.Publisher) {
	appointmentValidator := validator.NewAppointmentValidator(cfg.Log)
	appointmentRepo := repository.NewMongoAppointmentRepository(cfg)
	lockRepo := repository.NewSlotLockRepository(cfg)

	publisher, err := events.NewPublisher(cfg)
	if err != nil {
		cfg.Log.Fatal("Failed to initialize event publisher", "error", err)
	}

	appointmentService := service.NewAppointmentService(
		appointmentRepo,
		lockRepo,
		appointmentValidator,
		publisher,
		cfg,
	)

	cfg.Log.Info("Appointment service initialized", "database", cfg.MongoDatabaseName)
	return appointmentService, publisher
}
