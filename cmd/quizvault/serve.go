package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/quizvault/quizvault/internal/maintenance"
	"github.com/quizvault/quizvault/internal/web"
	"github.com/quizvault/quizvault/internal/web/handlers"
)

func newServeCmd() *cobra.Command {
	var (
		port        int
		bind        string
		allowSubnet string
		seedPath    string
		noSeed      bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Bootstrap the store and serve the leaderboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}

			flags := cmd.Flags()
			if flags.Changed("port") {
				cfg.Server.Port = port
			}
			if flags.Changed("bind") {
				if net.ParseIP(bind) == nil {
					return fmt.Errorf("invalid bind address: %s", bind)
				}
				cfg.Server.Bind = bind
			}
			if flags.Changed("allow-subnet") {
				cfg.Server.AllowedNetwork = allowSubnet
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			allowedNet, err := cfg.Server.AllowedNet()
			if err != nil {
				return err
			}

			if (cfg.Server.Bind == "0.0.0.0" || cfg.Server.Bind == "::") && allowedNet == nil {
				log.Warn().Msg("Server is accessible from all interfaces without subnet restrictions. Consider using --bind or --allow-subnet for security.")
			}

			log.Info().
				Str("version", version).
				Str("addr", cfg.Server.Address()).
				Str("database", cfg.DBPath).
				Msg("Starting QuizVault")

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			a, err := openApp(ctx, cfg)
			if err != nil {
				return err
			}
			defer a.close()

			seed, err := resolveSeed(cfg, seedPath, noSeed)
			if err != nil {
				return err
			}
			if _, err := a.bootstrap(ctx, seed); err != nil {
				return err
			}

			scheduler := maintenance.NewScheduler(a.db)
			if err := scheduler.Start(cfg.MaintenanceSchedule); err != nil {
				return err
			}
			defer scheduler.Stop()

			sigChan := make(chan os.Signal, 1)
			signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigChan)

			go func() {
				select {
				case sig := <-sigChan:
					log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
					cancel()
				case <-ctx.Done():
				}
			}()

			h := handlers.New(a.accounts, a.sessions, a.db)
			server := web.NewServer(cfg.Server.Address(), allowedNet, cfg.Timeouts, h)
			if err := server.Start(ctx); err != nil {
				return fmt.Errorf("server error: %w", err)
			}

			log.Info().Msg("QuizVault stopped")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP server port (or set QUIZVAULT_PORT)")
	cmd.Flags().StringVarP(&bind, "bind", "b", "", "IP address to bind to (e.g., 127.0.0.1, 0.0.0.0)")
	cmd.Flags().StringVarP(&allowSubnet, "allow-subnet", "a", "", "CIDR subnet allowed to connect (e.g., 192.168.1.0/24)")
	cmd.Flags().StringVar(&seedPath, "seed", "", "Seed file applied when the store is empty (.json or .sql)")
	cmd.Flags().BoolVar(&noSeed, "no-seed", false, "Create the schema without seeding an empty store")

	return cmd
}
