package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/xpanvictor/quil-bridge/internal/app"
	"github.com/xpanvictor/quil-bridge/internal/auth"
	"github.com/xpanvictor/quil-bridge/internal/config"
	"github.com/xpanvictor/quil-bridge/internal/server"
	"github.com/xpanvictor/quil-bridge/pkg/Logger"
)

// This is the main entry point for the bridge server.
// Loads in all system components
// Exposes the device gateway
func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "quil-bridge",
		Short:         "Bridge between Quil voice devices and the OpenAI speech APIs",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}

	serveCmd := &cobra.Command{
		Use:           "serve",
		Short:         "Run the device gateway (default)",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}

	tokenCmd := &cobra.Command{
		Use:           "token [device-id]",
		Short:         "Issue a device token signed with the configured JWT secret",
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          issueToken,
	}
	tokenCmd.Flags().Duration("ttl", 0, "Token lifetime (0 never expires)")

	rootCmd.AddCommand(serveCmd, tokenCmd)
	return rootCmd
}

func serve(_ *cobra.Command, _ []string) error {
	// fetch cfg
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	// load global logger
	logger := Logger.New(cfg.Debug)
	defer logger.Sync()
	logger.Infof("Logger initialized (env=%s, mode=%s)", cfg.Env, cfg.Bridge.Mode)

	application, err := app.NewApp(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}

	// compose router
	if !cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	gateway := server.InitializeRoutes(router, application.GetServerDependencies())

	// listen with graceful exit
	srv := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: router.Handler(),
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Infof("Quil bridge listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-quit:
		logger.Infof("received %s, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			application.Shutdown()
			return fmt.Errorf("server exited: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	// upgraded connections are hijacked, so sessions are closed explicitly
	if err := gateway.Close(); err != nil {
		logger.Warnf("closing sessions: %v", err)
	}
	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Shutdown err %v", err)
	}
	application.Shutdown()
	logger.Info("Shutdown system")
	return nil
}

func issueToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	deviceAuth := auth.NewDeviceAuth(cfg.Auth.JWTSecret)
	if deviceAuth == nil {
		return errors.New("auth.jwt_secret is not set (QUIL_AUTH_JWT_SECRET)")
	}
	ttl, _ := cmd.Flags().GetDuration("ttl")

	token, err := deviceAuth.Issue(args[0], ttl)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
