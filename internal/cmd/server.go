package main

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/Dream-Merchants-VIT/my-bid/internal/auction/gateway"
	"github.com/rs/cors"
)

func setupServer(services *Services) *http.Server {
	mux := http.NewServeMux()

	// Setup CORS middleware
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: []string{"*"},
		AllowedHeaders: []string{"*"},
	})

	// Register WebSocket routes
	handler := gateway.NewHandler(services.Hub)
	handler.RegisterRoutes(mux)

	setupHealthCheck(mux, services)

	return &http.Server{
		Addr:    fmt.Sprintf(":%s", getEnv("PORT", "8080")),
		Handler: c.Handler(mux),
	}
}

func setupHealthCheck(mux *http.ServeMux, services *Services) {
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		status := "ok"
		failures := services.Engine.SettlementFailures()
		if failures > 0 {
			// Surface abandoned durable settlements to operators.
			status = "degraded"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"status":              status,
			"state":               services.Engine.State().String(),
			"connections":         services.Hub.ConnectionCount(),
			"settlement_failures": failures,
		})
	})
}
