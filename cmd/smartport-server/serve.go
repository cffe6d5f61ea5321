package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"google.golang.org/grpc"

	"github.com/smartport-kiosk/smartport/internal/auth"
	"github.com/smartport-kiosk/smartport/internal/bus"
	"github.com/smartport-kiosk/smartport/internal/config"
	"github.com/smartport-kiosk/smartport/internal/db"
	"github.com/smartport-kiosk/smartport/internal/device"
	"github.com/smartport-kiosk/smartport/internal/httpapi"
	"github.com/smartport-kiosk/smartport/internal/obs"
	"github.com/smartport-kiosk/smartport/internal/smartport/service"
	"github.com/smartport-kiosk/smartport/internal/smartport/store/sqlstore"
)

func servicePolicy(p config.Policy) service.Policy {
	return service.Policy{
		MatchThreshold: p.MatchThreshold,
		WeightMinKg:    p.WeightMinKg,
		WeightMaxKg:    p.WeightMaxKg,
		WarningKg:      p.WarningKg,
		OverweightKg:   p.OverweightKg,
	}
}

func runServer(ctx context.Context, cfg config.Config, logger *log.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	obs.Init()

	codec, err := embeddingCodec(cfg)
	if err != nil {
		return err
	}

	// Store. Connectivity or migration failure is fatal.
	conn, dialect, err := openDB(ctx, cfg)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer conn.Close()

	if cfg.Env == "dev" {
		if err := db.SeedDev(ctx, conn, dialect, db.SeedDevOptions{AdminTag: cfg.DevAdminTag}); err != nil {
			return err
		}
	}

	writer, closeWriter := db.NewRunner(conn, dialect)
	defer closeWriter()
	st := sqlstore.New(conn, writer, dialect, sqlstore.WithCodec(codec))

	// Devices
	var (
		rawReader device.TagReader
		simulated bool
	)
	if cfg.ReaderDevice != "" {
		f, err := os.Open(cfg.ReaderDevice)
		if err != nil {
			return fmt.Errorf("open reader %s: %w", cfg.ReaderDevice, err)
		}
		defer f.Close()
		rawReader = device.NewLineReader(f, logger)
	} else {
		logger.Printf("no reader device configured, using simulated reader")
		rawReader = device.NewSimulatedReader()
		simulated = true
	}
	reader := device.NewExclusiveReader(rawReader, cfg.ReaderLockWait, cfg.ReaderTimeout)

	var rawCamera device.FaceCapturer
	if cfg.CameraURL != "" {
		rawCamera = device.NewHTTPCapturer(cfg.CameraURL, 5*time.Second)
	} else {
		logger.Printf("no camera service configured, face captures will report no face")
		rawCamera = device.NewStaticCapturer(nil)
	}
	camera := device.NewExclusiveCapturer(rawCamera, cfg.ReaderLockWait, cfg.CameraAttempts, cfg.CameraDelay)

	// Bus
	topics := bus.Topics{
		TagPresented: cfg.TopicTagPresented,
		DoorResponse: cfg.TopicDoorResponse,
		Weight:       cfg.TopicWeight,
	}
	var busConn bus.Conn
	if cfg.MQTTBroker != "" {
		busConn = bus.NewMQTT(bus.MQTTConfig{
			Broker:         cfg.MQTTBroker,
			ClientIDPrefix: cfg.MQTTClientID,
			Username:       cfg.MQTTUsername,
			Password:       cfg.MQTTPassword,
			QoS:            1,
		}, logger)
	} else {
		logger.Printf("no broker configured, using in-process bus")
		busConn = bus.NewMemory()
	}
	defer busConn.Close()

	// Services
	policy := service.NewPolicyHolder(servicePolicy(cfg.Policy))
	if cfg.File != "" {
		if err := config.WatchPolicy(ctx, cfg.File, logger, func(p config.Policy) {
			policy.Store(servicePolicy(p))
		}); err != nil {
			logger.Printf("config watch disabled: %v", err)
		}
	}

	var signer *auth.Signer
	var tokens service.TokenIssuer
	if cfg.JWTSecret != "" {
		if signer, err = auth.NewSigner(cfg.JWTSecret, cfg.JWTTTL); err != nil {
			return err
		}
		tokens = signer
	} else {
		logger.Printf("SMARTPORT_JWT_SECRET not set, admin routes are unauthenticated")
	}

	doorCfg := service.DoorConfig{
		ResponseTopic: topics.DoorResponse,
		OpenPayload:   cfg.DoorOpenPayload,
		DenyPayload:   cfg.DoorDenyPayload,
	}
	doorSvc := service.NewDoorService(st, busConn, doorCfg, logger)
	weightSvc := service.NewWeightService(st, policy, logger)

	pruner := service.NewWeightPruner(st, service.PrunerConfig{
		RetentionDays: cfg.WeightRetentionDays,
		IntervalHours: cfg.PruneIntervalHours,
	}, logger)
	pruner.Start(ctx)
	defer pruner.Stop()

	dispatcher := bus.NewDispatcher(busConn, topics, doorSvc, weightSvc, logger)
	if err := dispatcher.Start(ctx); err != nil {
		return fmt.Errorf("bus subscribe: %w", err)
	}
	defer dispatcher.Stop()

	if m, ok := busConn.(*bus.MQTT); ok {
		m.Connect(ctx)
	}

	probes := httpapi.Probes{
		Store:           st,
		Bus:             busConn.State(),
		Reader:          reader,
		ReaderSimulated: simulated,
	}

	// HTTP
	srv := httpapi.NewServer(httpapi.Dependencies{
		Logger:          logger,
		Addr:            cfg.HTTPAddr,
		Enrollment:      service.NewEnrollmentService(st, reader, camera, codec, logger),
		Verification:    service.NewVerificationService(st, reader, camera, service.NewMatcher(policy), logger),
		Admin:           service.NewAdminService(st, reader, tokens, logger),
		Weights:         weightSvc,
		Probes:          probes,
		Signer:          signer,
		VerifyPerMinute: cfg.VerifyRatePerMinute,
		VerifyBurst:     cfg.VerifyBurst,
	})

	errCh := make(chan error, 2)
	go func() {
		logger.Printf("listening on %s door=%s", cfg.HTTPAddr, doorCfg)
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// gRPC health
	var grpcSrv *grpc.Server
	if cfg.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.GRPCAddr)
		if err != nil {
			return fmt.Errorf("grpc listen: %w", err)
		}
		grpcSrv = grpc.NewServer()
		health := httpapi.NewGRPCHealth(probes)
		health.Register(grpcSrv)
		go health.Run(ctx, 10*time.Second)
		go func() {
			logger.Printf("grpc health listening on %s", cfg.GRPCAddr)
			if err := grpcSrv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				errCh <- err
			}
		}()
	}

	var runErr error
	select {
	case <-ctx.Done():
		logger.Printf("shutting down")
	case runErr = <-errCh:
		logger.Printf("server error: %v", runErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if grpcSrv != nil {
		grpcSrv.GracefulStop()
	}
	_ = srv.Shutdown(shutdownCtx)
	return runErr
}
