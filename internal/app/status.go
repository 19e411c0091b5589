package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

// healthHandler answers liveness probes.
func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	a.logger.Debug("Health check endpoint hit.", "remote_addr", r.RemoteAddr, "path", r.URL.Path)
	w.WriteHeader(http.StatusOK)
	fmt.Fprintln(w, "OK")
}

// eventsHandler upgrades the connection to a websocket and streams
// pipeline lifecycle events to the client until the run finishes or the
// client disconnects.
func (a *App) eventsHandler(upgrader *websocket.Upgrader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			a.logger.Debug("Websocket upgrade failed.", "error", err)
			return
		}
		defer conn.Close()
		a.logger.Debug("Event stream client connected.", "remote_addr", r.RemoteAddr)

		ch, cancel := a.bus.Subscribe(64)
		defer cancel()

		for event := range ch {
			if err := conn.WriteJSON(event); err != nil {
				a.logger.Debug("Event stream client dropped.", "error", err)
				return
			}
		}
		// Bus closed: tell the client the stream is over.
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
	}
}

// startStatusServer runs the status HTTP server in the background and
// returns it for later shutdown.
func (a *App) startStatusServer(port int) *http.Server {
	upgrader := &websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", a.healthHandler)
	mux.HandleFunc("/events", a.eventsHandler(upgrader))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: mux,
	}

	go func() {
		a.logger.Info("Status server starting.", "address", fmt.Sprintf("http://localhost%s/health", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("Status server failed unexpectedly.", "error", err)
		}
	}()
	return srv
}

func (a *App) stopStatusServer(srv *http.Server) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		a.logger.Error("Status server shutdown failed.", "error", err)
		return
	}
	a.logger.Debug("Status server shut down gracefully.")
}
