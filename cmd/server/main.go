package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/blues/bounty/internal/config"
	"github.com/blues/bounty/internal/event"
	"github.com/blues/bounty/internal/fee"
	"github.com/blues/bounty/internal/gateway"
	"github.com/blues/bounty/internal/handler"
	"github.com/blues/bounty/internal/keylock"
	"github.com/blues/bounty/internal/logger"
	"github.com/blues/bounty/internal/logic"
	"github.com/blues/bounty/internal/notify"
	"github.com/blues/bounty/internal/repository"
	"github.com/blues/bounty/internal/router"
	"github.com/blues/bounty/internal/task"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	root := &cobra.Command{
		Use:           "bountyd",
		Short:         "Crowdfunded bug bounty service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default: ./config.yaml)")
	root.AddCommand(serveCmd(), migrateCmd())

	if err := root.Execute(); err != nil {
		logger.Error("%v", err)
		logger.Sync()
		os.Exit(1)
	}
}

// loadConfig 加载配置并初始化日志
func loadConfig() (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update database tables",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			db, err := repository.Init(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to initialize database: %w", err)
			}
			if err := repository.Migrate(db); err != nil {
				return err
			}
			logger.Info("Database migrated")
			return nil
		},
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and scheduled jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			defer logger.Sync()
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	// 初始化数据库
	db, err := repository.Init(cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return err
	}
	store := repository.New(db)

	feeCfg, err := cfg.Fee.Calculator()
	if err != nil {
		return err
	}
	calc, err := fee.NewCalculator(feeCfg)
	if err != nil {
		return err
	}

	gw, err := gateway.New(cfg.Gateway.Gateway())
	if err != nil {
		return err
	}

	sender, err := notify.NewSender(cfg.Notify.Mode, cfg.Notify.WebhookURL)
	if err != nil {
		return err
	}
	dispatcher, err := notify.NewDispatcher(sender, cfg.Notify.PoolSize)
	if err != nil {
		return err
	}
	defer dispatcher.Close()

	bus := event.NewBus(event.NewAuditProcessor(store), event.NewNotifyProcessor(dispatcher))
	locks := keylock.New()
	opts := logic.OptionsFromConfig(cfg)
	bids := logic.NewBidLogic(store, calc, gw, bus, locks, opts)
	claims := logic.NewClaimLogic(store, calc, gw, bus, locks, opts)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := router.Setup(router.Handlers{
		Bid:   handler.NewBidHandler(bids),
		Claim: handler.NewClaimHandler(claims),
		Fee:   handler.NewFeeHandler(calc),
	})

	// 启动定时任务
	tasks, err := task.NewManager(bids, claims, cfg)
	if err != nil {
		return err
	}
	if err := tasks.Start(); err != nil {
		return err
	}
	defer tasks.Stop()

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Server starting on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
