// Reclaim Core
// Copyright (c) 2025 The Reclaim Project Contributors.
// SPDX-License-Identifier: GPL-3.0-or-later
//
// This file is part of Reclaim Core.
//
// Reclaim Core is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Reclaim Core is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with Reclaim Core.  If not, see <http://www.gnu.org/licenses/>.

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/ReclaimProject/reclaim-core/pkg/api/methods"
	"github.com/ReclaimProject/reclaim-core/pkg/api/middleware"
	"github.com/ReclaimProject/reclaim-core/pkg/api/models"
	"github.com/ReclaimProject/reclaim-core/pkg/api/models/requests"
	"github.com/ReclaimProject/reclaim-core/pkg/api/validation"
	"github.com/ReclaimProject/reclaim-core/pkg/config"
	"github.com/ReclaimProject/reclaim-core/pkg/database"
	"github.com/ReclaimProject/reclaim-core/pkg/disks"
	"github.com/ReclaimProject/reclaim-core/pkg/helpers/syncutil"
	"github.com/ReclaimProject/reclaim-core/pkg/platforms"
	"github.com/ReclaimProject/reclaim-core/pkg/recovery"
	"github.com/ReclaimProject/reclaim-core/pkg/service/shutdown"
	"github.com/ReclaimProject/reclaim-core/pkg/service/state"
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/olahol/melody"
	"github.com/rs/zerolog/log"
)

var JSONRPCErrorParseError = models.ErrorObject{
	Code:    -32700,
	Message: "Parse error",
}
var JSONRPCErrorInvalidRequest = models.ErrorObject{
	Code:    -32600,
	Message: "Invalid Request",
}
var JSONRPCErrorMethodNotFound = models.ErrorObject{
	Code:    -32601,
	Message: "Method not found",
}
var JSONRPCErrorInvalidParams = models.ErrorObject{
	Code:    -32602,
	Message: "Invalid params",
}
var JSONRPCErrorInternalError = models.ErrorObject{
	Code:    -32603,
	Message: "Internal error",
}
var JSONRPCErrorServerError = models.ErrorObject{
	Code:    -32000,
	Message: "Server error",
}
var JSONRPCErrorNotFound = models.ErrorObject{
	Code:    -32001,
	Message: "Not found",
}
var JSONRPCErrorBusy = models.ErrorObject{
	Code:    -32002,
	Message: "Resource busy",
}
var JSONRPCErrorUnavailable = models.ErrorObject{
	Code:    -32003,
	Message: "Service unavailable",
}
var JSONRPCErrorTimeout = models.ErrorObject{
	Code:    -32004,
	Message: "Timeout",
}

// maxRequestBody bounds a single POST request body.
const maxRequestBody = 1 << 20 // 1MB

// MethodMap is the JSON-RPC method table. Methods are registered once at
// startup and looked up per message.
type MethodMap struct {
	methods map[string]func(requests.RequestEnv) (any, error)
	mu      syncutil.RWMutex
}

// NewMethodMap returns an empty method table.
func NewMethodMap() *MethodMap {
	return &MethodMap{
		methods: make(map[string]func(requests.RequestEnv) (any, error)),
	}
}

// AddMethod registers a handler under its wire name. Names are
// case-insensitive and must be unique.
func (m *MethodMap) AddMethod(name string, fn func(requests.RequestEnv) (any, error)) error {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return errors.New("method name is empty")
	}
	if fn == nil {
		return fmt.Errorf("method %s has no handler", name)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.methods[name]; ok {
		return fmt.Errorf("method %s already registered", name)
	}
	m.methods[name] = fn
	return nil
}

// GetMethod looks up a handler by wire name.
func (m *MethodMap) GetMethod(name string) (func(requests.RequestEnv) (any, error), bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn, ok := m.methods[strings.ToLower(name)]
	return fn, ok
}

// DefaultMethodMap returns the method table with every core method
// registered.
func DefaultMethodMap() *MethodMap {
	m := NewMethodMap()
	handlers := map[string]func(requests.RequestEnv) (any, error){
		// contexts
		models.MethodContextsInit:          methods.HandleInitContext,
		models.MethodContextsCleanup:       methods.HandleCleanupContext,
		models.MethodContexts:              methods.HandleContexts,
		models.MethodContextsOptions:       methods.HandleContextOptions,
		models.MethodContextsOptionsUpdate: methods.HandleUpdateContextOptions,
		// disks
		models.MethodDisks:           methods.HandleDisks,
		models.MethodDisksPartitions: methods.HandlePartitions,
		models.MethodDisksArch:       methods.HandleArchs,
		models.MethodDisksImageAdd:   methods.HandleAddImage,
		// recovery
		models.MethodRecoveryStart:  methods.HandleRecoveryStart,
		models.MethodRecoveryStop:   methods.HandleRecoveryStop,
		models.MethodRecoveryStatus: methods.HandleRecoveryStatus,
		// service
		models.MethodServiceShutdown:   methods.HandleShutdown,
		models.MethodServiceHeartbeat:  methods.HandleHeartbeat,
		models.MethodServiceStatistics: methods.HandleStatistics,
		// sessions
		models.MethodSessionsHistory: methods.HandleHistory,
		// settings
		models.MethodSettings:       methods.HandleSettings,
		models.MethodSettingsUpdate: methods.HandleSettingsUpdate,
		models.MethodSettingsReload: methods.HandleSettingsReload,
		// utils
		models.MethodVersion: methods.HandleVersion,
	}
	for name, fn := range handlers {
		if err := m.AddMethod(name, fn); err != nil {
			log.Error().Err(err).Str("method", name).Msg("skipping method registration")
		}
	}
	return m
}

// mapError converts a handler error to its JSON-RPC error object. The
// message keeps the handler's error text so clients can see what failed.
func mapError(err error) models.ErrorObject {
	var valErr *validation.Error
	code := JSONRPCErrorServerError.Code
	switch {
	case errors.Is(err, validation.ErrMissingParams),
		errors.Is(err, validation.ErrInvalidParams),
		errors.As(err, &valErr):
		code = JSONRPCErrorInvalidParams.Code
	case errors.Is(err, state.ErrContextNotFound),
		errors.Is(err, disks.ErrDeviceNotFound),
		errors.Is(err, recovery.ErrNoRun):
		code = JSONRPCErrorNotFound.Code
	case errors.Is(err, state.ErrDeviceBusy),
		errors.Is(err, state.ErrTooManyContexts),
		errors.Is(err, disks.ErrDeviceBusy),
		errors.Is(err, disks.ErrImageExists),
		errors.Is(err, recovery.ErrRunActive):
		code = JSONRPCErrorBusy.Code
	case errors.Is(err, state.ErrShuttingDown):
		code = JSONRPCErrorUnavailable.Code
	case errors.Is(err, shutdown.ErrDrainTimeout):
		code = JSONRPCErrorTimeout.Code
	}
	return models.ErrorObject{Code: code, Message: err.Error()}
}

// requestUUID recovers a uuid from string request IDs that carry one, for
// request tracing. Anything else maps to uuid.Nil.
func requestUUID(id models.RPCID) uuid.UUID {
	var s string
	if err := json.Unmarshal(id.RawMessage, &s); err != nil {
		return uuid.Nil
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return parsed
}

// logSafeResponse debug-logs a method result. History payloads are
// summarized so recovered event data stays out of the service log.
func logSafeResponse(result any) {
	if hist, ok := result.(models.HistoryResponse); ok {
		log.Debug().Int("entries", len(hist.Entries)).Msg("sending response")
		return
	}
	log.Debug().Interface("result", result).Msg("sending response")
}

func errorResponse(id models.RPCID, errObj models.ErrorObject) models.ResponseErrorObject {
	return models.ResponseErrorObject{
		JSONRPC: "2.0",
		ID:      id,
		Error:   &errObj,
	}
}

// processRPCMessage parses and executes one JSON-RPC message, shared by the
// POST and WebSocket transports. It returns nil for notifications, which
// must not be answered.
func processRPCMessage(methodMap *MethodMap, env requests.RequestEnv, msg []byte) any {
	if !json.Valid(msg) {
		log.Error().Msg("request is not valid JSON")
		return errorResponse(models.RPCID{}, JSONRPCErrorParseError)
	}

	var req models.RequestObject
	if err := json.Unmarshal(msg, &req); err != nil {
		// structurally valid JSON that is not a request object, e.g. an
		// object or array ID
		log.Error().Err(err).Msg("request does not decode")
		return errorResponse(models.RPCID{}, JSONRPCErrorInvalidRequest)
	}

	if req.JSONRPC != "2.0" {
		log.Error().Str("jsonrpc", req.JSONRPC).Msg("unsupported protocol version")
		return errorResponse(req.ID, JSONRPCErrorInvalidRequest)
	}
	if req.Method == "" {
		return errorResponse(req.ID, JSONRPCErrorInvalidRequest)
	}

	log.Debug().Interface("request", req).Msg("received request")

	notification := req.ID.IsAbsent()

	fn, ok := methodMap.GetMethod(req.Method)
	if !ok {
		if notification {
			log.Warn().Str("method", req.Method).Msg("notification for unknown method")
			return nil
		}
		return errorResponse(req.ID, JSONRPCErrorMethodNotFound)
	}

	env.Params = req.Params
	env.ID = requestUUID(req.ID)

	result, err := fn(env)
	if notification {
		if err != nil {
			log.Error().Err(err).Str("method", req.Method).Msg("notification handler failed")
		}
		return nil
	}
	if err != nil {
		log.Error().Err(err).Str("method", req.Method).Msg("method returned error")
		return errorResponse(req.ID, mapError(err))
	}

	logSafeResponse(result)

	return models.ResponseObject{
		JSONRPC: "2.0",
		ID:      req.ID,
		Result:  result,
	}
}

// handlePostRequest returns the HTTP POST handler for the JSON-RPC API.
// JSON-RPC errors are returned with HTTP 200 per the JSON-RPC 2.0 transport
// convention; transport-level failures use plain HTTP status codes.
func handlePostRequest(
	methodMap *MethodMap,
	platform platforms.Platform,
	cfg *config.Instance,
	st *state.State,
	db *database.Database,
	enum *disks.Enumerator,
	coordinator *shutdown.Coordinator,
	engine recovery.Engine,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		contentType := r.Header.Get("Content-Type")
		if !strings.HasPrefix(strings.ToLower(contentType), "application/json") {
			http.Error(w, "Unsupported Media Type", http.StatusUnsupportedMediaType)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				http.Error(w, "Request body too large", http.StatusRequestEntityTooLarge)
				return
			}
			log.Error().Err(err).Msg("reading POST request body")
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}

		env := requests.RequestEnv{
			Platform:    platform,
			Config:      cfg,
			State:       st,
			Database:    db,
			Disks:       enum,
			Coordinator: coordinator,
			Engine:      engine,
			IsLocal:     middleware.IsLoopbackAddr(r.RemoteAddr),
		}

		resp := processRPCMessage(methodMap, env, body)
		if resp == nil {
			// notification, no reply
			w.WriteHeader(http.StatusNoContent)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Error().Err(err).Msg("writing POST response")
		}
	}
}

func sendError(session *melody.Session, id models.RPCID, errObj models.ErrorObject) {
	data, err := json.Marshal(errorResponse(id, errObj))
	if err != nil {
		log.Error().Err(err).Msg("marshalling error response")
		return
	}
	if err := session.Write(data); err != nil {
		log.Error().Err(err).Msg("writing error response")
	}
}

// handleWSMessage returns the WebSocket message handler. It shares the
// JSON-RPC dispatch with the POST transport and additionally answers the
// plain "ping" heartbeat.
func handleWSMessage(
	methodMap *MethodMap,
	platform platforms.Platform,
	cfg *config.Instance,
	st *state.State,
	db *database.Database,
	enum *disks.Enumerator,
	coordinator *shutdown.Coordinator,
	engine recovery.Engine,
) func(session *melody.Session, msg []byte) {
	return func(session *melody.Session, msg []byte) {
		if bytes.Equal(msg, []byte("ping")) {
			if err := session.Write([]byte("pong")); err != nil {
				log.Error().Err(err).Msg("sending pong")
			}
			return
		}

		env := requests.RequestEnv{
			Platform:    platform,
			Config:      cfg,
			State:       st,
			Database:    db,
			Disks:       enum,
			Coordinator: coordinator,
			Engine:      engine,
			IsLocal:     middleware.IsLoopbackAddr(session.Request.RemoteAddr),
		}

		resp := processRPCMessage(methodMap, env, msg)
		if resp == nil {
			return
		}

		data, err := json.Marshal(resp)
		if err != nil {
			log.Error().Err(err).Msg("marshalling response")
			sendError(session, models.RPCID{}, JSONRPCErrorInternalError)
			return
		}
		if err := session.Write(data); err != nil {
			log.Error().Err(err).Msg("writing response")
		}
	}
}

// broadcastNotifications forwards service notifications to every connected
// WebSocket session until the service context is cancelled. Each broadcast
// runs in its own goroutine so one slow client cannot stall the
// notification channel.
func broadcastNotifications(
	st *state.State,
	session *melody.Melody,
	notifications <-chan models.Notification,
) {
	for {
		select {
		case <-st.ServiceContext().Done():
			log.Debug().Msg("stopping API notification broadcast")
			return
		case notif := <-notifications:
			obj := models.NotificationObject{
				JSONRPC: "2.0",
				Method:  notif.Method,
				Params:  notif.Params,
			}
			data, err := json.Marshal(obj)
			if err != nil {
				log.Error().Err(err).Msg("marshalling notification")
				continue
			}
			go func() {
				if err := session.Broadcast(data); err != nil {
					log.Error().Err(err).Msg("broadcasting notification")
				}
			}()
		}
	}
}

// Start binds the API listener and begins serving the JSON-RPC API over
// WebSocket and HTTP POST. It returns once the listener is accepting
// connections; the server runs until the service context is cancelled.
func Start(
	platform platforms.Platform,
	cfg *config.Instance,
	st *state.State,
	db *database.Database,
	enum *disks.Enumerator,
	coordinator *shutdown.Coordinator,
	engine recovery.Engine,
	notifications <-chan models.Notification,
) error {
	methodMap := DefaultMethodMap()

	r := chi.NewRouter()
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.NoCache)
	r.Use(chimiddleware.Timeout(config.APIRequestTimeout))

	allowedOrigins := cfg.AllowedOrigins()
	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"https://*", "http://*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	ipFilter := middleware.NewIPFilter(cfg.AllowedIPs())
	rateLimiter := middleware.NewIPRateLimiter()
	rateLimiter.StartCleanup(st.ServiceContext())

	session := melody.New()
	session.Upgrader.CheckOrigin = func(_ *http.Request) bool { return true }
	go broadcastNotifications(st, session, notifications)

	session.HandleMessage(middleware.WebSocketRateLimitHandler(
		rateLimiter,
		handleWSMessage(methodMap, platform, cfg, st, db, enum, coordinator, engine),
	))

	handleWS := func(w http.ResponseWriter, r *http.Request) {
		if err := session.HandleRequest(w, r); err != nil {
			log.Error().Err(err).Msg("handling websocket request")
		}
	}
	postHandler := handlePostRequest(methodMap, platform, cfg, st, db, enum, coordinator, engine)

	r.Group(func(r chi.Router) {
		r.Use(middleware.HTTPIPFilterMiddleware(ipFilter))
		r.Use(middleware.HTTPRateLimitMiddleware(rateLimiter))
		r.Get("/api", handleWS)
		r.Post("/api", postHandler)
		r.Get("/api/v0.1", handleWS)
		r.Post("/api/v0.1", postHandler)
	})

	listener, err := net.Listen("tcp", cfg.APIListen())
	if err != nil {
		return fmt.Errorf("failed to bind API listener on %s: %w", cfg.APIListen(), err)
	}

	srv := &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-st.ServiceContext().Done()
		if err := session.Close(); err != nil {
			log.Debug().Err(err).Msg("closing websocket sessions")
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("shutting down API server")
		}
	}()

	go func() {
		if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("API server stopped")
		}
	}()

	log.Info().Str("addr", listener.Addr().String()).Msg("API server listening")
	return nil
}
