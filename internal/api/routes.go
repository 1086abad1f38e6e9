package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/trogers1052/mse-market-data/internal/ingest"
)

// SetupRoutes configures all API routes and wraps them in the middleware chain
func SetupRoutes(handler *Handler, cors CORSConfig) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()

	// Issuer routes
	api.HandleFunc("/issuers", handler.ListIssuers).Methods("GET")
	api.HandleFunc("/issuers", handler.ingestBatch(ingest.KindIssuer)).Methods("POST")
	api.HandleFunc("/issuers/{code}", handler.GetIssuer).Methods("GET")
	api.HandleFunc("/issuers/{code}", handler.PutIssuer).Methods("PUT")
	api.HandleFunc("/issuers/{code}", handler.DeleteIssuer).Methods("DELETE")

	// Historical data routes
	api.HandleFunc("/historical-data", handler.ListHistoricalData).Methods("GET")
	api.HandleFunc("/historical-data", handler.ingestBatch(ingest.KindHistoricalData)).Methods("POST")
	api.HandleFunc("/historical-data/byIssuer", handler.ListHistoricalDataByIssuer).Methods("GET")
	api.HandleFunc("/historical-data/{id:[0-9]+}", handler.GetHistoricalDataPoint).Methods("GET")
	api.HandleFunc("/historical-data/{id:[0-9]+}/values", handler.GetHistoricalValues).Methods("GET")

	// Signal routes
	api.HandleFunc("/signals", handler.ListSignals).Methods("GET")
	api.HandleFunc("/signals", handler.ingestBatch(ingest.KindSignal)).Methods("POST")
	api.HandleFunc("/signals/add", handler.ingestBatch(ingest.KindSignal)).Methods("POST")
	api.HandleFunc("/signals/{id:[0-9]+}", handler.GetSignal).Methods("GET")

	var h http.Handler = r
	h = CORS(cors)(h)
	h = Recovery(h)
	h = Logging("/health")(h)
	h = RequestID(h)
	return h
}
