package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gorilla/handlers"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/wellbeat/healthsync/internal/config"
	"github.com/wellbeat/healthsync/internal/server"
	"github.com/wellbeat/healthsync/internal/store"
)

// App is the HTTP surface: authenticated write routes which persist a record
// and publish the matching health update, plus the websocket endpoint.
type App struct {
	log        *logrus.Logger
	store      store.Store
	hub        *server.Hub
	dispatcher *server.Dispatcher
	mux        *http.Server
	upgrader   websocket.Upgrader
	signingKey []byte
}

func NewApp(mux *http.ServeMux, logger *logrus.Logger, hub *server.Hub, dispatcher *server.Dispatcher, st store.Store, cfg *config.Config) *App {
	a := &App{
		log:        logger,
		store:      st,
		hub:        hub,
		dispatcher: dispatcher,
		upgrader:   websocket.Upgrader{},
		signingKey: cfg.SigningKey,
	}

	mux.HandleFunc("POST /api/vitals", a.authMiddleware(a.createVitals))
	mux.HandleFunc("POST /api/moods", a.authMiddleware(a.createMood))
	mux.HandleFunc("POST /api/appointments", a.authMiddleware(a.createAppointment))
	mux.HandleFunc("PUT /api/appointments/{id}", a.authMiddleware(a.updateAppointment))
	mux.HandleFunc("POST /api/medications/{id}/remind", a.authMiddleware(a.remindMedication))
	mux.HandleFunc("POST /api/emergency", a.authMiddleware(a.emergencyAlert))
	mux.HandleFunc("GET /ws", a.authMiddleware(a.serveWs))

	h := handlers.CORS(
		handlers.MaxAge(3600),
		handlers.AllowedOrigins(cfg.AllowedOrigins),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions}),
		handlers.AllowedHeaders([]string{"Origin", "Content-Type", "Accept", "Authorization"}),
		handlers.AllowCredentials(),
	)(mux)

	h = a.errorHandler(h)

	a.mux = &http.Server{
		Addr:    cfg.ServerAddr,
		Handler: h,
	}

	return a
}

func (a *App) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				var panicError error
				switch e := err.(type) {
				case error:
					panicError = e
				default:
					panicError = fmt.Errorf("%v", e)
				}
				a.log.Errorf("panic: %v", panicError)
				errResp := NewInternalServerError(panicError)
				w.Header().Set("Connection", "close")
				a.writeJson(w, errResp.StatusCode, errResp)
				return
			}
		}()

		next.ServeHTTP(w, r)
	})
}

func (a *App) Start() error {
	a.log.Infof("starting server on %s", a.mux.Addr)
	return a.mux.ListenAndServe()
}

func (a *App) Shutdown(ctx context.Context) error {
	a.log.Info("shutting down server")
	if err := a.mux.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	return nil
}
