package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"fmt"
	mrand "math/rand/v2"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/beka-birhanu/claw-arbiter/api"
	"github.com/beka-birhanu/claw-arbiter/broadcast"
	"github.com/beka-birhanu/claw-arbiter/config"
	"github.com/beka-birhanu/claw-arbiter/driver"
	"github.com/beka-birhanu/claw-arbiter/service"
	"github.com/beka-birhanu/claw-arbiter/service/i"
	"github.com/beka-birhanu/claw-arbiter/store"
	"github.com/beka-birhanu/udp-socket-manager/crypto"
	udppb "github.com/beka-birhanu/udp-socket-manager/encoding"
	udpsocket "github.com/beka-birhanu/udp-socket-manager/socket"
	general_i "github.com/beka-birhanu/vinom-common/interfaces/general"
	socket_i "github.com/beka-birhanu/vinom-common/interfaces/socket"
	logger "github.com/beka-birhanu/vinom-common/log"
	"google.golang.org/grpc"
)

const shutdownTimeout = 5 * time.Second

// Global variables for dependencies
var (
	appLogger        general_i.Logger
	stateStore       store.Store
	wsHub            *broadcast.Hub
	udpSocketManager socket_i.ServerSocketManager
	udpSink          *broadcast.UDPSink
	notifier         *broadcast.Fanout
	actuator         hardware
	audio            i.Audio
	game             *service.Game
	scheduler        *service.Scheduler
	commandRouter    *service.Router
	httpServer       *http.Server
	grpcServer       *grpc.Server
)

// hardware drives the direction LEDs and the lamp.
type hardware interface {
	i.Actuator
	i.Lamp
	Close()
}

func newLogger(prefix, color string) general_i.Logger {
	l, err := logger.New(prefix, color, os.Stdout)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating %s logger: %v", prefix, err))
		os.Exit(1)
	}
	return l
}

func initStore() {
	s, err := store.Open(config.Envs.StoreDriver, config.Envs.StorePath)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Opening %s store at %s: %v", config.Envs.StoreDriver, config.Envs.StorePath, err))
		os.Exit(1)
	}
	stateStore = s
	appLogger.Info(fmt.Sprintf("State store initialized (%s)", config.Envs.StoreDriver))
}

func initUDPSocketManager() {
	if !config.Envs.UDPEnabled {
		return
	}
	serverAddr, err := net.ResolveUDPAddr("udp", fmt.Sprintf("%s:%v", config.Envs.UDPHost, config.Envs.UdpPort))
	if err != nil {
		appLogger.Error(fmt.Sprintf("Resolving server address: %v", err))
		os.Exit(1)
	}

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Generating RSA key: %v", err))
		os.Exit(1)
	}

	serverLogger, err := logger.New("SOCKET", config.ColorBlue, os.Stdout)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating UDP socket manager logger: %v", err))
		os.Exit(1)
	}
	server, err := udpsocket.NewServerSocketManager(
		udpsocket.ServerConfig{
			ListenAddr:  serverAddr,
			AsymmCrypto: crypto.NewRSA(privateKey),
			SymmCrypto:  crypto.NewAESCBC(),
			Encoder:     &udppb.Protobuf{},
			HMAC:        &crypto.HMAC{},
			Logger:      serverLogger,
		},
		udpsocket.ServerWithReadBufferSize(config.Envs.UDPBufferSize),
		udpsocket.ServerWithHeartbeatExpiration(time.Duration(config.Envs.UDPHeartbeatExpiration)*time.Millisecond),
	)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating server UDP socket manager: %v", err))
		os.Exit(1)
	}

	udpSocketManager = server
	udpSink = broadcast.NewUDPSink(server)
	appLogger.Info("UDP Socket Manager initialized")
}

func initNotifier() {
	wsHub = broadcast.NewHub(newLogger("WS", config.ColorPurple))
	sinks := []broadcast.Sink{wsHub}
	if udpSink != nil {
		sinks = append(sinks, udpSink)
	}
	notifier = broadcast.NewFanout(config.Envs.BroadcastChannel, newLogger("BROADCAST", config.ColorPurple), sinks...)
	appLogger.Info(fmt.Sprintf("Notifier initialized with %d sinks", len(sinks)))
}

func initDrivers() {
	driverLogger := newLogger("DRIVER", config.ColorYellow)
	noop := driver.Noop{Logger: driverLogger}

	actuator = noop
	if config.Envs.GPIOEnabled {
		actuator = driver.NewGPIO(&driver.GPIOConfig{Chip: config.Envs.GPIOChip, Logger: driverLogger})
	}

	audio = noop
	if config.Envs.AudioEnabled {
		audio = driver.NewAudio(&driver.AudioConfig{
			SoundsDir:     config.Envs.SoundsDir,
			PulseServer:   config.Envs.PulseServer,
			XDGRuntimeDir: config.Envs.XDGRuntimeDir,
			Logger:        driverLogger,
		})
	}
	appLogger.Info(fmt.Sprintf("Drivers initialized (gpio: %v, audio: %v)", config.Envs.GPIOEnabled, config.Envs.AudioEnabled))
}

func initGame() {
	catalog := service.DefaultCatalog()
	if config.Envs.CatalogPath != "" {
		c, err := service.LoadCatalog(config.Envs.CatalogPath)
		if err != nil {
			appLogger.Error(fmt.Sprintf("Loading catalog: %v", err))
			os.Exit(1)
		}
		catalog = c
	}

	rng := mrand.New(mrand.NewPCG(mrand.Uint64(), mrand.Uint64()))
	g, err := service.NewGame(context.Background(), &service.GameConfig{
		Generator:   service.NewGenerator(catalog, rng),
		Store:       stateStore,
		Broadcaster: notifier,
		Actuator:    actuator,
		Audio:       audio,
		Lamp:        actuator,
		Logger:      newLogger("GAME", config.ColorCyan),
	})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating game: %v", err))
		os.Exit(1)
	}
	game = g
	appLogger.Info("Game initialized")
}

func initScheduler() {
	s, err := service.NewScheduler(&service.SchedulerConfig{
		Store:       stateStore,
		Broadcaster: notifier,
		Logger:      newLogger("SCHEDULER", config.ColorCyan),
		Duration:    config.Envs.SessionDuration,
		Grace:       config.Envs.SessionGrace,
	})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating scheduler: %v", err))
		os.Exit(1)
	}
	scheduler = s
	appLogger.Info("Scheduler initialized")
}

func initRouter() {
	commandRouter = service.NewRouter(&service.RouterConfig{
		Scheduler:            scheduler,
		Game:                 game,
		Broadcaster:          notifier,
		Logger:               newLogger("ROUTER", config.ColorWhite),
		RequireActiveSession: config.Envs.RequireActiveSession,
	})

	// new websocket subscribers get a full snapshot of the board and the queue
	wsHub.SetGreeter(func() []broadcast.Envelope {
		channel := config.Envs.BroadcastChannel
		return []broadcast.Envelope{
			{Channel: channel, Event: service.EventObjectsInit, Data: commandRouter.GameState().Objects},
			{Channel: channel, Event: service.EventQueueUpdate, Data: commandRouter.QueueStatus()},
		}
	})
	appLogger.Info("Command router initialized")
}

func initUDPHandler() {
	if udpSocketManager == nil {
		return
	}
	handler, err := api.NewUDPHandler(&api.UDPConfig{
		Router:      commandRouter,
		Subscribers: udpSink,
		Replier:     udpSocketManager,
		Logger:      newLogger("UDP", config.ColorBlue),
	})
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating UDP handler: %v", err))
		os.Exit(1)
	}
	udpSocketManager.SetClientRequestHandler(handler.HandleRequest)
	udpSocketManager.SetClientAuthenticator(handler)
	appLogger.Info("UDP handler initialized")
}

func initHTTPServer() {
	h, err := api.NewHTTPServer(commandRouter, wsHub, newLogger("HTTP", config.ColorGreen))
	if err != nil {
		appLogger.Error(fmt.Sprintf("Creating HTTP server: %v", err))
		os.Exit(1)
	}
	httpServer = &http.Server{
		Addr:              config.Envs.HTTPAddr,
		Handler:           h.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	appLogger.Info("HTTP server initialized")
}

func initGRPCServer() {
	grpcServer = grpc.NewServer(grpc.UnaryInterceptor(api.LoggingInterceptor(newLogger("GRPC", config.ColorGreen))))
	if err := api.RegisterNewClawArbiter(grpcServer, commandRouter); err != nil {
		appLogger.Error(fmt.Sprintf("Creating and Registering arbiter controller: %v", err))
		os.Exit(1)
	}
	appLogger.Info("gRPC arbiter controller initialized")
}

func shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		appLogger.Warning(fmt.Sprintf("Shutting down HTTP server: %v", err))
	}
	grpcServer.GracefulStop()
	scheduler.Stop()
	wsHub.Close()
	if udpSocketManager != nil {
		udpSocketManager.Stop()
	}
	actuator.Close()
	if err := stateStore.Close(); err != nil {
		appLogger.Warning(fmt.Sprintf("Closing store: %v", err))
	}
	appLogger.Info("Stopped")
}

func main() {
	appLogger, _ = logger.New("APP", config.ColorGreen, os.Stdout)
	initStore()
	initUDPSocketManager()
	initNotifier()
	initDrivers()
	initGame()
	initScheduler()
	initRouter()
	initUDPHandler()
	initHTTPServer()
	initGRPCServer()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if udpSocketManager != nil {
		go udpSocketManager.Serve()
		appLogger.Info(fmt.Sprintf("UDP Socket Manager serving at %s", udpSocketManager.GetAddr()))
	}

	go func() {
		appLogger.Info(fmt.Sprintf("Serving HTTP at: %s", config.Envs.HTTPAddr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Error(fmt.Sprintf("Serving HTTP: %v", err))
			stop()
		}
	}()

	grpcConnListener, err := net.Listen("tcp", config.Envs.GrpcAddr)
	if err != nil {
		appLogger.Error(fmt.Sprintf("Listening tcp: %v", err))
		os.Exit(1)
	}
	go func() {
		appLogger.Info(fmt.Sprintf("Serving gRPC at: %s", config.Envs.GrpcAddr))
		if err := grpcServer.Serve(grpcConnListener); err != nil {
			appLogger.Error(fmt.Sprintf("Serving gRPC: %v", err))
			stop()
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down")
	shutdown()
}
