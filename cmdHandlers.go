package main

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"chest-xray-pipeline/db"
	"chest-xray-pipeline/utils"

	socketio "github.com/googollee/go-socket.io"
	"github.com/googollee/go-socket.io/engineio"
	"github.com/googollee/go-socket.io/engineio/transport"
	"github.com/googollee/go-socket.io/engineio/transport/polling"
	"github.com/googollee/go-socket.io/engineio/transport/websocket"
	"github.com/mdobak/go-xerrors"
)

type apiError struct {
	Message string `json:"message"`
}

const defaultListLimit = 20

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	if w.Header().Get("Access-Control-Allow-Origin") == "" {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode JSON response: %v", err)
	}
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, apiError{Message: message})
}

// getOnly wraps h with the CORS headers and method check shared by every endpoint.
func getOnly(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Credentials", "true")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		if r.Method != http.MethodGet {
			writeJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		h(w, r)
	}
}

func parseLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

func newAnalysisHandler(svc *statusService) http.HandlerFunc {
	logger := utils.GetLogger()
	return getOnly(func(w http.ResponseWriter, r *http.Request) {
		mode, err := parseModeOrDefault(r.URL.Query().Get("mode"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		res, err := svc.analyze(mode)
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to analyze dataset", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to analyze dataset")
			return
		}
		writeJSON(w, http.StatusOK, res)
	})
}

func newRunsHandler(svc *statusService) http.HandlerFunc {
	logger := utils.GetLogger()
	return getOnly(func(w http.ResponseWriter, r *http.Request) {
		runs, err := svc.recentRuns(r.Context(), parseLimit(r))
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to load runs", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load runs")
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})
}

func newPredictionsHandler(svc *statusService) http.HandlerFunc {
	logger := utils.GetLogger()
	return getOnly(func(w http.ResponseWriter, r *http.Request) {
		records, err := svc.predictions.Recent(parseLimit(r))
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to load predictions", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "failed to load predictions")
			return
		}
		writeJSON(w, http.StatusOK, records)
	})
}

func newConfigHandler(svc *statusService) http.HandlerFunc {
	logger := utils.GetLogger()
	return getOnly(func(w http.ResponseWriter, r *http.Request) {
		mode, err := parseModeOrDefault(r.URL.Query().Get("mode"))
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, err.Error())
			return
		}

		cfg, err := svc.config(mode)
		if errors.Is(err, fs.ErrNotExist) {
			writeJSONError(w, http.StatusNotFound, "dataset config not found, run the analysis first")
			return
		}
		if err != nil {
			logger.ErrorContext(r.Context(), "failed to read dataset config", slog.Any("error", xerrors.New(err)))
			writeJSONError(w, http.StatusInternalServerError, "invalid dataset config")
			return
		}
		writeJSON(w, http.StatusOK, cfg)
	})
}

func newMux(svc *statusService, socketServer http.Handler) *http.ServeMux {
	mux := http.NewServeMux()
	if socketServer != nil {
		mux.Handle("/socket.io/", socketServer)
	}
	mux.HandleFunc("/api/analysis", newAnalysisHandler(svc))
	mux.HandleFunc("/api/runs", newRunsHandler(svc))
	mux.HandleFunc("/api/predictions", newPredictionsHandler(svc))
	mux.HandleFunc("/api/config", newConfigHandler(svc))
	return mux
}

func serve(protocol, port string) {
	protocol = strings.ToLower(protocol)
	var allowOriginFunc = func(r *http.Request) bool {
		return true
	}
	logger := utils.GetLogger()
	ctx := context.Background()

	runs, err := db.NewDBClient(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "run history unavailable", slog.Any("error", xerrors.New(err)))
		runs = nil
	} else {
		defer runs.Close()
	}

	svc := newStatusServiceFromEnv(runs)
	controller := newSocketController(svc)

	server := socketio.NewServer(&engineio.Options{
		PingTimeout:  60 * time.Second,
		PingInterval: 25 * time.Second,
		Transports: []transport.Transport{
			&websocket.Transport{
				CheckOrigin: allowOriginFunc,
			},
			&polling.Transport{
				CheckOrigin: allowOriginFunc,
			},
		},
	})

	server.OnConnect("/", func(socket socketio.Conn) error {
		socket.SetContext("")
		log.Printf("CONNECTED: %s, remote addr: %s\n", socket.ID(), socket.RemoteAddr())
		return nil
	})

	server.OnEvent("/", "requestAnalysis", func(socket socketio.Conn, msg string) {
		log.Printf("requestAnalysis received from %s (mode=%q)\n", socket.ID(), msg)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("panic in handleRequestAnalysis for socket %s: %v\n", socket.ID(), r)
					socket.Emit("analysisError", map[string]string{"message": "internal server error during analysis"})
				}
			}()
			controller.handleRequestAnalysis(socket, msg)
		}()
	})

	server.OnEvent("/", "requestRuns", func(socket socketio.Conn, msg string) {
		log.Printf("requestRuns received from %s\n", socket.ID())
		controller.handleRequestRuns(socket, msg)
	})

	server.OnError("/", func(s socketio.Conn, e error) {
		log.Println("meet error:", e)
	})

	server.OnDisconnect("/", func(s socketio.Conn, reason string) {
		log.Printf("Socket disconnected - ID: %s, Reason: %s\n", s.ID(), reason)
	})

	go func() {
		if err := server.Serve(); err != nil {
			log.Fatalf("socketio listen error: %s\n", err)
		}
	}()
	defer server.Close()

	serveHTTP(server, protocol == "https", port, newMux(svc, server))
}

func serveHTTP(socketServer *socketio.Server, serveHTTPS bool, port string, handler http.Handler) {
	if handler == nil {
		handler = socketServer
	}
	if serveHTTPS {
		httpsAddr := ":" + port
		httpsServer := &http.Server{
			Addr: httpsAddr,
			TLSConfig: &tls.Config{
				MinVersion: tls.VersionTLS12,
			},
			Handler: handler,
		}

		certKey := utils.GetEnv("CERT_KEY", "")
		certFile := utils.GetEnv("CERT_FILE", "")
		if certKey == "" || certFile == "" {
			log.Fatal("Missing cert: set CERT_KEY and CERT_FILE")
		}

		log.Printf("Starting HTTPS server on %s\n", httpsAddr)
		if err := httpsServer.ListenAndServeTLS(certFile, certKey); err != nil {
			log.Fatalf("HTTPS server ListenAndServeTLS: %v", err)
		}
		return
	}

	log.Printf("Starting HTTP server on port %v", port)
	if err := http.ListenAndServe(":"+port, handler); err != nil {
		log.Fatalf("HTTP server ListenAndServe: %v", err)
	}
}
