package server

import (
	"net/http"
)

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// WebSocket route - pushes task progress and terminal results
	mux.HandleFunc("/ws", s.app.WSHandler.HandleWebSocket)

	// API routes - Tasks
	mux.HandleFunc("POST /api/tasks", s.app.TaskHandler.HandleSubmit)
	mux.HandleFunc("GET /api/tasks/{id}", s.app.TaskHandler.HandleGet)
	mux.HandleFunc("POST /api/tasks/{id}/cancel", s.app.TaskHandler.HandleCancel)

	// API routes - History ledgers
	mux.HandleFunc("GET /api/history/{kind}", s.app.HistoryHandler.HandleList)
	mux.HandleFunc("DELETE /api/history/{kind}/{id}", s.app.HistoryHandler.HandleDelete)

	// API routes - Shopping list
	mux.HandleFunc("GET /api/shopping", s.app.ShoppingHandler.HandleList)
	mux.HandleFunc("POST /api/shopping", s.app.ShoppingHandler.HandleAdd)
	mux.HandleFunc("DELETE /api/shopping/{id}", s.app.ShoppingHandler.HandleRemove)

	// API routes - Status and seller directory
	mux.HandleFunc("GET /api/status", s.app.StatusHandler.HandleStatus)
	mux.HandleFunc("GET /api/sellers", s.app.StatusHandler.HandleSellers)

	return mux
}
