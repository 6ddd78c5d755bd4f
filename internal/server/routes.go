package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes configures the HTTP router for hub: health check, WebSocket
// transport, directory snapshot and test page.
func SetupRoutes(hub *Hub, ws http.Handler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", HealthHandler)
	r.Handle("/ws", ws)
	r.HandleFunc("/contacts", ContactsHandler(hub)).Methods(http.MethodGet)
	r.HandleFunc("/test", TestPageHandler).Methods(http.MethodGet)
	return r
}
