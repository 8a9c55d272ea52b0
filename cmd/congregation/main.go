// Command congregation runs the congregation backend API and its database migrations.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	"github.com/aimd54/congregation/internal/api/handler"
	"github.com/aimd54/congregation/internal/cache"
	"github.com/aimd54/congregation/internal/config"
	"github.com/aimd54/congregation/internal/mattermost"
	"github.com/aimd54/congregation/internal/repository"
	"github.com/aimd54/congregation/internal/service/leaderboard"
	"github.com/aimd54/congregation/internal/service/membership"
	"github.com/aimd54/congregation/internal/service/picnic"
	"github.com/aimd54/congregation/internal/service/points"
	"github.com/aimd54/congregation/internal/service/rewards"
	"github.com/aimd54/congregation/internal/service/scheduler"
	"github.com/aimd54/congregation/pkg/logger"
)

func init() {
	// for development
	//nolint:errcheck
	godotenv.Load("../../.env")

	// for production
	//nolint:errcheck
	godotenv.Load("./.env")
}

func main() {
	app := &cli.App{
		Name:  "congregation",
		Usage: "church membership, rewards and picnic backend",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "path to the YAML config file",
				EnvVars: []string{"CONFIG_PATH"},
			},
		},
		Commands: []*cli.Command{
			commandServe(),
			commandMigrate(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func loadConfig(c *cli.Context) (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}

	logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	return cfg, logger.Get(), nil
}

func commandServe() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "start the API server, metrics exporter and scheduler",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "migrate",
				Usage: "apply pending migrations before serving",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}

			if c.Bool("migrate") {
				if err := repository.RunMigrations(&cfg.Database.Postgres, log); err != nil {
					return err
				}
			}

			return serve(cfg, log)
		},
	}
}

func commandMigrate() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "manage the database schema",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					cfg, log, err := loadConfig(c)
					if err != nil {
						return err
					}
					return repository.RunMigrations(&cfg.Database.Postgres, log)
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "steps",
						Value: 1,
						Usage: "number of migrations to roll back",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, log, err := loadConfig(c)
					if err != nil {
						return err
					}
					if c.Int("steps") < 1 {
						return fmt.Errorf("steps must be at least 1")
					}
					return repository.RollbackMigrations(&cfg.Database.Postgres, c.Int("steps"), log)
				},
			},
		},
	}
}

func serve(cfg *config.Config, log *logger.Logger) error {
	db, err := repository.NewDB(&cfg.Database.Postgres, log)
	if err != nil {
		return err
	}
	defer db.Close()

	redisCache, err := cache.NewRedisCache(&cfg.Database.Redis)
	if err != nil {
		return err
	}
	defer redisCache.Close()

	catalog := points.DefaultCatalog()
	if cfg.Points.CatalogFile != "" {
		catalog, err = points.LoadCatalog(cfg.Points.CatalogFile)
		if err != nil {
			return err
		}
	}
	log.Info().Strs("actions", catalog.Actions()).Msg("Loaded point catalog")

	ledger := points.NewLedger(db, catalog, redisCache, log)
	rewardsService := rewards.NewService(db, redisCache, ledger, &cfg.Rewards, log)
	picnicService := picnic.NewService(db, ledger, &cfg.Picnic, log)
	membershipService := membership.NewService(db, ledger, &cfg.Membership, log)
	leaderboardService := leaderboard.NewService(db, redisCache, cfg.Rewards.CatalogCacheTTL, log)

	var notifier scheduler.Notifier
	if cfg.Mattermost.Enabled {
		notifier = mattermost.NewClient(&cfg.Mattermost, log)
	}
	jobs := scheduler.NewService(cfg, membershipService, picnicService, notifier, log)
	if err := jobs.Start(); err != nil {
		return err
	}
	defer jobs.Stop()

	h := handler.NewHandler(ledger, rewardsService, picnicService, membershipService, leaderboardService, log)
	h.SetRedeemLimit(cache.NewLimiter(redisCache.Client()), cfg.Rewards.RedeemLimitPerMinute)
	h.SetHealthChecks(
		handler.HealthCheck{Name: "database", Check: func(context.Context) error { return db.Health() }},
		handler.HealthCheck{Name: "redis", Check: redisCache.Health},
	)

	if cfg.Server.Environment != "development" {
		gin.SetMode(gin.ReleaseMode)
	}

	servers := []*http.Server{{
		Addr:              ":" + strconv.Itoa(cfg.Server.Port),
		Handler:           handler.NewRouter(h, log),
		ReadHeaderTimeout: 10 * time.Second,
	}}

	if cfg.Metrics.Prometheus.Enabled {
		mux := http.NewServeMux()
		mux.Handle(cfg.Metrics.Prometheus.Path, promhttp.Handler())
		servers = append(servers, &http.Server{
			Addr:              ":" + strconv.Itoa(cfg.Metrics.Prometheus.Port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		})
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errWg, errCtx := errgroup.WithContext(ctx)

	for _, srv := range servers {
		errWg.Go(func() error {
			log.Info().Str("addr", srv.Addr).Msg("Listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s failed: %w", srv.Addr, err)
			}
			return nil
		})

		errWg.Go(func() error {
			<-errCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = errWg.Wait()
	log.Info().Msg("Server stopped")
	return err
}
