package keyregistry

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/tinywideclouds/go-microservice-base/pkg/microservice"
	"github.com/tinywideclouds/go-microservice-base/pkg/middleware"

	"github.com/tinywideclouds/go-key-registry/internal/api"
	"github.com/tinywideclouds/go-key-registry/keyregistry/config"
	"github.com/tinywideclouds/go-key-registry/pkg/keyregistry"
)

// Wrapper embeds the BaseServer to inherit standard server functionality and
// registers the registry's routes on top of it.
type Wrapper struct {
	*microservice.BaseServer
	logger zerolog.Logger
}

// New wires the HTTP surface over a lifecycle engine. Write routes require
// authentication; read routes take it when offered and fall back to the
// anonymous actor.
func New(
	cfg *config.Config,
	lifecycle keyregistry.Lifecycle,
	requireAuth func(http.Handler) http.Handler,
	optionalAuth func(http.Handler) http.Handler,
	logger zerolog.Logger,
) *Wrapper {
	baseServer := microservice.NewBaseServer(logger, cfg.HTTPListenAddr)

	apiHandler := &api.API{Lifecycle: lifecycle, Logger: logger}

	mux := baseServer.Mux()
	corsMiddleware := middleware.NewCorsMiddleware(cfg.CorsConfig)

	mux.Handle("POST /keys", corsMiddleware(requireAuth(http.HandlerFunc(apiHandler.AddKeyHandler))))
	mux.Handle("GET /keys", corsMiddleware(optionalAuth(http.HandlerFunc(apiHandler.ListKeysHandler))))
	mux.Handle("GET /keys/{keySlug}", corsMiddleware(optionalAuth(http.HandlerFunc(apiHandler.GetKeyHandler))))
	mux.Handle("PATCH /keys/{keySlug}", corsMiddleware(requireAuth(http.HandlerFunc(apiHandler.UpdateKeyHandler))))
	mux.Handle("DELETE /keys/{keySlug}", corsMiddleware(requireAuth(http.HandlerFunc(apiHandler.RevokeKeyHandler))))

	preflightHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	mux.Handle("OPTIONS /keys", corsMiddleware(preflightHandler))
	mux.Handle("OPTIONS /keys/{keySlug}", corsMiddleware(preflightHandler))

	return &Wrapper{
		BaseServer: baseServer,
		logger:     logger,
	}
}

// Start runs the HTTP server and handles the readiness logic.
func (w *Wrapper) Start() error {
	errChan := make(chan error, 1)
	httpReadyChan := make(chan struct{})
	w.BaseServer.SetReadyChannel(httpReadyChan)

	go func() {
		if err := w.BaseServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			w.logger.Error().Err(err).Msg("HTTP server failed")
			errChan <- err
		}
		close(errChan)
	}()

	// Wait for either the listener to come up or startup to fail.
	select {
	case <-httpReadyChan:
		w.logger.Info().Msg("HTTP listener is active.")
		w.SetReady(true)
		w.logger.Info().Msg("Service is now ready.")
	case err := <-errChan:
		return err
	}

	// Wait for the server goroutine to exit (which happens on Shutdown).
	return <-errChan
}
