package httpserver

import "net/http"

// Routes groups handlers.
type Routes struct {
	Health       http.HandlerFunc
	WS           http.HandlerFunc
	Session      http.HandlerFunc
	SessionReset http.HandlerFunc
	Clients      http.HandlerFunc
	// Web serves the static kiosk page; optional.
	Web          http.Handler
}

// NewRouter registers endpoints.
func NewRouter(routes Routes) http.Handler {
	mux := http.NewServeMux()
	if routes.Health != nil {
		mux.Handle("/health", method(http.MethodGet, routes.Health))
	}
	if routes.WS != nil {
		mux.Handle("/ws", method(http.MethodGet, routes.WS))
	}
	if routes.Session != nil {
		mux.Handle("/api/session", method(http.MethodGet, routes.Session))
	}
	if routes.SessionReset != nil {
		mux.Handle("/api/session/reset", method(http.MethodPost, routes.SessionReset))
	}
	if routes.Clients != nil {
		mux.Handle("/api/clients", method(http.MethodGet, routes.Clients))
	}
	if routes.Web != nil {
		mux.Handle("/", routes.Web)
	}
	return mux
}

func method(expected string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != expected {
			w.Header().Set("Allow", expected)
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		handler(w, r)
	}
}
