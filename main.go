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

	"github.com/gin-gonic/gin"

	"github.com/antibyte/chayakada/pkg/api"
	"github.com/antibyte/chayakada/pkg/configuration"
	"github.com/antibyte/chayakada/pkg/interpreter"
	"github.com/antibyte/chayakada/pkg/logger"
	"github.com/antibyte/chayakada/pkg/storage"
	"github.com/antibyte/chayakada/pkg/terminal"
	tlsmanager "github.com/antibyte/chayakada/pkg/tls"
)

func main() {
	// Configuration comes first, everything else reads from it
	configPath := os.Getenv("CHAYAKADA_CONFIG")
	if configPath == "" {
		configPath = "settings.cfg"
	}
	if err := configuration.Initialize(configPath); err != nil {
		fmt.Printf("Error initializing configuration: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Initialize(); err != nil {
		fmt.Printf("Error initializing logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Close()
	logger.ConfigInfo("System started - Configuration loaded from: %s", configPath)

	dbPath := configuration.GetString("Storage", "db_path", "chayakada.db")
	db, err := storage.InitDB(dbPath)
	if err != nil {
		logger.Fatal(logger.AreaStorage, "Database initialization failed: %v", err)
	}
	defer db.Close()

	if err := storage.CreateTables(db); err != nil {
		logger.Fatal(logger.AreaStorage, "Table creation failed: %v", err)
	}
	logger.Info(logger.AreaStorage, "Database %s ready", dbPath)

	interp := interpreter.New(
		interpreter.WithPauseDuration(configuration.GetDuration("Interpreter", "pause_duration", interpreter.DefaultPauseDuration)),
	)
	logger.Info(logger.AreaInterpreter, "Interpreter ready (pause %v)", interp.PauseDuration())

	runHandler := terminal.NewRunHandler(interp)
	defer func() {
		logger.Info(logger.AreaWebSocket, "Closing %d WebSocket clients", runHandler.ClientCount())
		runHandler.Shutdown()
	}()

	gin.SetMode(gin.ReleaseMode)
	router := api.NewServer(interp, storage.NewFileStore(db), http.HandlerFunc(runHandler.HandleWebSocket)).Router()

	tlsManager, err := tlsmanager.NewTLSManager()
	if err != nil {
		logger.Fatal(logger.AreaSecurity, "TLS manager initialization failed: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var servers []*http.Server
	errorChan := make(chan error, 2)

	if tlsManager.IsEnabled() {
		servers = startTLSServers(tlsManager, router, errorChan)
	} else {
		server := &http.Server{Addr: ":" + tlsManager.GetHTTPPort(), Handler: router}
		logger.Info(logger.AreaGeneral, "Starting HTTP server on port %s", tlsManager.GetHTTPPort())
		go serve(server, errorChan, server.ListenAndServe)
		servers = append(servers, server)
	}

	select {
	case err := <-errorChan:
		logger.Error(logger.AreaGeneral, "Server stopped: %v", err)
	case <-ctx.Done():
		logger.Info(logger.AreaGeneral, "Shutting down servers...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, server := range servers {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn(logger.AreaGeneral, "Shutdown of %s failed: %v", server.Addr, err)
		}
	}
	logger.Info(logger.AreaGeneral, "Servers stopped")
}

func serve(server *http.Server, errorChan chan<- error, listen func() error) {
	if err := listen(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		errorChan <- fmt.Errorf("%s: %w", server.Addr, err)
	}
}

func startTLSServers(tlsManager *tlsmanager.TLSManager, router http.Handler, errorChan chan<- error) []*http.Server {
	httpPort := tlsManager.GetHTTPPort()
	httpsPort := tlsManager.GetHTTPSPort()
	logger.Info(logger.AreaSecurity, "Starting TLS-enabled servers - HTTP: %s, HTTPS: %s", httpPort, httpsPort)

	var servers []*http.Server

	if tlsManager.NeedsHTTPServer() {
		// ACME challenges first, everything else is redirected or served
		fallback := tlsManager.GetHTTPSRedirectHandler()
		if fallback == nil {
			fallback = router
		}
		handler := tlsManager.GetHTTPHandler(fallback)
		if handler == nil {
			handler = fallback
		}

		httpServer := &http.Server{Addr: ":" + httpPort, Handler: handler}
		logger.Info(logger.AreaSecurity, "Starting HTTP server for Let's Encrypt challenges/redirects on port %s", httpPort)
		go serve(httpServer, errorChan, httpServer.ListenAndServe)
		servers = append(servers, httpServer)
	}

	httpsServer := &http.Server{
		Addr:      ":" + httpsPort,
		Handler:   router,
		TLSConfig: tlsManager.GetTLSConfig(),
	}
	logger.Info(logger.AreaSecurity, "Starting HTTPS server on port %s", httpsPort)
	go serve(httpsServer, errorChan, func() error { return httpsServer.ListenAndServeTLS("", "") })

	return append(servers, httpsServer)
}
