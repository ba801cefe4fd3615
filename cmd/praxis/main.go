package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"praxis/internal/api"
	"praxis/internal/booking"
	"praxis/internal/cache"
	"praxis/internal/config"
	"praxis/internal/conflict"
	"praxis/internal/db"
	"praxis/internal/events"
	"praxis/internal/metrics"
	"praxis/internal/slots"
	"praxis/internal/timeofday"
)

const clinicPollInterval = 30 * time.Second

func main() {
	rootCmd := &cobra.Command{
		Use:   "praxis",
		Short: "Appointment scheduling for therapy practices",
	}
	rootCmd.PersistentFlags().String("config", os.Getenv("PRAXIS_CONFIG_PATH"), "Path to config.yaml")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(syncCmd())
	rootCmd.AddCommand(slotsCmd())
	rootCmd.AddCommand(checkCmd())
	rootCmd.AddCommand(backupCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	output := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(output).With().Timestamp().Logger()
}

// openStore loads the config and opens the database it points to.
func openStore(cmd *cobra.Command, logger *zerolog.Logger) (*config.Config, *db.DB, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	database, err := db.NewDB(cfg.Database.Path, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("open db: %w", err)
	}
	return cfg, database, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, database, err := openStore(cmd, &logger)
			if err != nil {
				return err
			}
			defer database.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var rdb *redis.Client
			if cfg.Redis.Address != "" {
				rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Address, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
				defer rdb.Close()
			}
			schedules := cache.NewScheduleCache(database, rdb, cfg.ScheduleCacheTTL())

			err = config.WatchClinic(ctx, cfg.ClinicConfigPath, clinicPollInterval,
				func(clinic *config.ClinicConfig) {
					if err := database.SyncClinicFromConfig(ctx, clinic); err != nil {
						logger.Error().Err(err).Msg("Failed to sync clinic config")
						return
					}
					if err := schedules.Invalidate(ctx); err != nil {
						logger.Warn().Err(err).Msg("Failed to invalidate schedule cache")
					}
					logger.Info().Str("clinic", clinic.String()).Msg("Clinic config synced")
				},
				func(err error) {
					logger.Error().Err(err).Msg("Clinic config reload failed")
				},
			)
			if err != nil {
				return fmt.Errorf("clinic config: %w", err)
			}

			bus := events.NewEventBus()
			for _, t := range []string{
				events.AppointmentBooked, events.AppointmentRescheduled, events.AppointmentCancelled,
				events.AppointmentCompleted, events.AppointmentNoShow,
			} {
				bus.Subscribe(t, func(ev events.Event) error {
					logger.Info().Str("event", ev.Type).Str("appointment_id", ev.AppointmentID).Msg("Appointment event")
					return nil
				})
			}

			checker := conflict.NewChecker(schedules)
			gen := slots.NewGenerator(checker, slots.Config{
				IntervalMinutes: cfg.SlotInterval(),
				MinAdvance:      cfg.BookingMinAdvance(),
				Location:        cfg.Location(),
				Now:             time.Now,
			})
			bookings := booking.NewService(database, checker, bus, booking.Config{
				MinAdvance: cfg.BookingMinAdvance(),
				MaxAdvance: cfg.BookingMaxAdvance(),
				Location:   cfg.Location(),
			}, &logger)

			if cfg.Monitoring.HealthCheckPort == 0 {
				cfg.Monitoring.HealthCheckPort = 8090
			}
			go startHealthServer(ctx, cfg.Monitoring.HealthCheckPort, database, schedules, &logger)

			if cfg.Monitoring.PrometheusEnabled {
				if cfg.Monitoring.PrometheusPort == 0 {
					cfg.Monitoring.PrometheusPort = 9090
				}
				metrics.Register()
				go startMetricsServer(ctx, cfg.Monitoring.PrometheusPort, &logger)
			}

			backups := db.NewBackupService(database, db.BackupConfig{
				Enabled:       cfg.Backup.Enabled,
				Interval:      time.Duration(cfg.Backup.IntervalHours) * time.Hour,
				Path:          cfg.Backup.Path,
				RetentionDays: cfg.Backup.RetentionDays,
			}, &logger)
			go backups.Start(ctx)

			if cfg.API.Port == 0 {
				cfg.API.Port = 8080
			}
			server := api.NewHTTPServer(api.Options{
				Port:           cfg.API.Port,
				APIKey:         cfg.API.APIKey,
				RateLimitRPS:   cfg.API.RateLimitRPS,
				RateLimitBurst: cfg.API.RateLimitBurst,
			}, database, checker, gen, bookings, &logger)

			go func() {
				<-ctx.Done()
				ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := server.Shutdown(ctxShutdown); err != nil {
					logger.Error().Err(err).Msg("API server shutdown error")
				}
			}()
			return server.Start()
		},
	}
}

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Load the clinic config into the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, database, err := openStore(cmd, &logger)
			if err != nil {
				return err
			}
			defer database.Close()

			clinic, err := cfg.LoadClinic()
			if err != nil {
				return err
			}
			if err := database.SyncClinicFromConfig(cmd.Context(), clinic); err != nil {
				return err
			}
			fmt.Println(clinic.String())
			return nil
		},
	}
}

func slotsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "slots",
		Short: "List free start times for a staff member",
		RunE: func(cmd *cobra.Command, args []string) error {
			dateStr, _ := cmd.Flags().GetString("date")
			staffID, _ := cmd.Flags().GetString("staff")
			serviceID, _ := cmd.Flags().GetString("service")
			duration, _ := cmd.Flags().GetInt("duration")
			interval, _ := cmd.Flags().GetInt("interval")

			date, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}

			logger := newLogger()
			cfg, database, err := openStore(cmd, &logger)
			if err != nil {
				return err
			}
			defer database.Close()

			if duration == 0 && serviceID != "" {
				svc, err := database.GetService(cmd.Context(), serviceID)
				if err != nil {
					return fmt.Errorf("service %s: %w", serviceID, err)
				}
				duration = svc.DurationMinutes
			}

			gen := slots.NewGenerator(conflict.NewChecker(database), slots.Config{
				IntervalMinutes: cfg.SlotInterval(),
				Location:        cfg.Location(),
			})
			free, err := gen.AvailableTimeSlots(cmd.Context(), date, staffID, duration, interval)
			if err != nil {
				return err
			}
			if len(free) == 0 {
				fmt.Println("no free slots")
				return nil
			}
			fmt.Printf("%s (%s): %s\n", date.Format("2006-01-02"), slots.FormatDuration(duration), strings.Join(free, " "))
			return nil
		},
	}
	cmd.Flags().String("date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().String("staff", "", "Staff member id")
	cmd.Flags().String("service", "", "Service id; its duration is used unless --duration is set")
	cmd.Flags().Int("duration", 0, "Duration in minutes")
	cmd.Flags().Int("interval", 0, "Step between start times in minutes (default from config)")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("staff")
	return cmd
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Report conflicts for a proposed appointment",
		RunE: func(cmd *cobra.Command, args []string) error {
			dateStr, _ := cmd.Flags().GetString("date")
			staffID, _ := cmd.Flags().GetString("staff")
			roomID, _ := cmd.Flags().GetString("room")
			start, _ := cmd.Flags().GetString("start")
			end, _ := cmd.Flags().GetString("end")
			exclude, _ := cmd.Flags().GetString("exclude")

			date, err := time.Parse("2006-01-02", dateStr)
			if err != nil {
				return fmt.Errorf("--date: %w", err)
			}
			iv, err := timeofday.ParseInterval(start, end)
			if err != nil {
				return err
			}

			logger := newLogger()
			_, database, err := openStore(cmd, &logger)
			if err != nil {
				return err
			}
			defer database.Close()

			conflicts, err := conflict.NewChecker(database).CheckTimeConflict(cmd.Context(), conflict.Query{
				Date:                 date,
				Interval:             iv,
				StaffID:              staffID,
				RoomID:               roomID,
				ExcludeAppointmentID: exclude,
			})
			if err != nil {
				return err
			}
			if len(conflicts) == 0 {
				fmt.Printf("%s %s: free\n", date.Format("2006-01-02"), iv)
				return nil
			}
			for _, c := range conflicts {
				fmt.Printf("%-18s %s  %s\n", c.Kind, c.Interval, c.Message)
			}
			return fmt.Errorf("%d conflict(s)", len(conflicts))
		},
	}
	cmd.Flags().String("date", "", "Date (YYYY-MM-DD)")
	cmd.Flags().String("staff", "", "Staff member id")
	cmd.Flags().String("room", "", "Room id")
	cmd.Flags().String("start", "", "Start time (HH:MM)")
	cmd.Flags().String("end", "", "End time (HH:MM)")
	cmd.Flags().String("exclude", "", "Appointment id to ignore")
	_ = cmd.MarkFlagRequired("date")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Take a database backup now",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, database, err := openStore(cmd, &logger)
			if err != nil {
				return err
			}
			defer database.Close()

			svc := db.NewBackupService(database, db.BackupConfig{
				Enabled:       true,
				Path:          cfg.Backup.Path,
				RetentionDays: cfg.Backup.RetentionDays,
			}, &logger)
			path, err := svc.PerformBackup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Println(path)
			if removed := svc.CleanupOldBackups(); removed > 0 {
				fmt.Printf("removed %d old backup(s)\n", removed)
			}
			return nil
		},
	}
}

func startHealthServer(ctx context.Context, port int, database *db.DB, schedules *cache.ScheduleCache, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		ctxPing, cancel := context.WithTimeout(ctx, time.Second)
		defer cancel()
		if err := database.PingContext(ctxPing); err != nil {
			http.Error(w, "db not ready", http.StatusServiceUnavailable)
			return
		}
		if err := schedules.Ping(ctxPing); err != nil {
			http.Error(w, "redis not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("health server error")
	}
}

func startMetricsServer(ctx context.Context, port int, logger *zerolog.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{Addr: fmt.Sprintf(":%d", port), Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		ctxShutdown, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctxShutdown)
	}()
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error().Err(err).Msg("metrics server error")
	}
}
