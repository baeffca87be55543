package server

import (
	"fmt"
	"net/http"
	"net/url"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"

	"ticrelay/internal/config"
	"ticrelay/internal/relay"
	"ticrelay/internal/wshub"
)

func Run() error {
	appCfg := config.Load()

	hub := wshub.NewHub()
	rly := relay.New(relay.NewRegistry(), hub)

	srv := &Server{
		Relay:          rly,
		Hub:            hub,
		OriginPatterns: originPatterns(appCfg.AppURL),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", srv.handleStatus)
	mux.HandleFunc("/stats", srv.handleStats)
	mux.HandleFunc("/health", srv.handleHealth)
	mux.HandleFunc("/ws", srv.handleWS)
	mux.Handle("/metrics", promhttp.Handler())

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{appCfg.AppURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost},
		AllowCredentials: true,
	})

	addr := "0.0.0.0:" + appCfg.Port
	fmt.Printf("Server listening on http://localhost:%s\n", appCfg.Port)
	return http.ListenAndServe(addr, c.Handler(mux))
}

// originPatterns derives the websocket origin allow-list from the
// configured client URL. Browsers send the origin without a path, so only
// the host part matters.
func originPatterns(appURL string) []string {
	u, err := url.Parse(appURL)
	if err != nil || u.Host == "" {
		return nil
	}
	return []string{u.Host}
}
