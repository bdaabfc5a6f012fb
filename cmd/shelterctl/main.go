package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"animal-shelter/internal/adapters/auth/jwtauth"
	pg "animal-shelter/internal/adapters/storage/postgres"
	"animal-shelter/internal/platform/config"
	"animal-shelter/internal/platform/logger"
	"animal-shelter/internal/ports/auth"
	"animal-shelter/internal/router"
	"animal-shelter/internal/seed"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type App struct {
	cfg config.Config
	log *zap.Logger
	ctx context.Context
}

var (
	dsn string
	app *App
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "shelterctl",
		Short: "Herramientas de operación del refugio",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initApp()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if app != nil && app.log != nil {
				_ = app.log.Sync()
			}
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&dsn, "dsn", "", "DSN de Postgres (default: DB_DSN)")

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(tokenCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func initApp() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if dsn == "" {
		dsn = cfg.DatabaseDSN
	}
	app = &App{
		cfg: cfg,
		log: logger.New(logger.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, App: "shelterctl"}),
		ctx: context.Background(),
	}
	return nil
}

func openDB() (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("no database configured: pass --dsn or set DB_DSN")
	}
	db, err := pg.Open(dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDB()
			if err != nil {
				return err
			}
			defer db.Close()

			ran, err := pg.RunMigrations(app.ctx, db)
			if err != nil {
				return err
			}
			if len(ran) == 0 {
				app.log.Info("schema up to date")
				return nil
			}
			for _, name := range ran {
				app.log.Info("migration applied", zap.String("file", name))
			}
			return nil
		},
	}
}

func seedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Carga animales, actividades y solicitudes desde un YAML",
		Long:  "Sin --dsn ni DB_DSN corre contra un store en memoria (dry run) y solo informa el resumen.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := seed.Load(file)
			if err != nil {
				return err
			}

			var db *sql.DB
			if dsn != "" {
				if db, err = openDB(); err != nil {
					return err
				}
				defer db.Close()
			} else {
				app.log.Warn("no database configured, dry run against memory store")
			}

			svcs := router.NewServices(db, app.log)
			res, err := seed.Apply(app.ctx, seed.Targets{
				Animals:    svcs.Animals,
				Activities: svcs.Activities,
				Adoptions:  svcs.Adoptions,
			}, f, app.log)
			if err != nil {
				return err
			}
			fmt.Printf("seeded %d animals, %d activities, %d adoption requests\n", res.Animals, res.Activities, res.Requests)
			return nil
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Archivo YAML")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// tokenCmd emite un JWT firmado con JWT_SECRET; útil en dev y staging.
func tokenCmd() *cobra.Command {
	var (
		email string
		roles string
		ttl   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token <user_id>",
		Short: "Emite un token de acceso",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg.DevAuth() {
				return fmt.Errorf("JWT_SECRET is not set")
			}
			tok, err := jwtauth.Sign(app.cfg.JWTSecret, app.cfg.JWTIssuer, auth.Claims{
				UserID: args[0],
				Email:  email,
				Roles:  auth.ParseRoles(roles),
			}, ttl)
			if err != nil {
				return err
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Email del usuario")
	cmd.Flags().StringVar(&roles, "roles", "", "Roles CSV (coordinator,vet,volunteer,adopter,admin)")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "Vigencia del token")
	return cmd
}
