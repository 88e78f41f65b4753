package models

import (
	"encoding/json"
)

const (
	NotificationContextsAdded   = "contexts.added"
	NotificationContextsRemoved = "contexts.removed"
	NotificationDisksAdded      = "disks.added"
	NotificationDisksRemoved    = "disks.removed"
	NotificationRecoveryStarted = "recovery.started"
	NotificationRecoveryStopped = "recovery.stopped"
	NotificationServiceStopping = "service.stopping"
)

const (
	MethodContextsInit          = "contexts.init"
	MethodContextsCleanup       = "contexts.cleanup"
	MethodContexts              = "contexts"
	MethodContextsOptions       = "contexts.options"
	MethodContextsOptionsUpdate = "contexts.options.update"
	MethodDisks                 = "disks"
	MethodDisksPartitions       = "disks.partitions"
	MethodDisksArch             = "disks.arch"
	MethodDisksImageAdd         = "disks.image.add"
	MethodRecoveryStart         = "recovery.start"
	MethodRecoveryStop          = "recovery.stop"
	MethodRecoveryStatus        = "recovery.status"
	MethodServiceShutdown       = "service.shutdown"
	MethodServiceHeartbeat      = "service.heartbeat"
	MethodServiceStatistics     = "service.statistics"
	MethodSessionsHistory       = "sessions.history"
	MethodSettings              = "settings"
	MethodSettingsUpdate        = "settings.update"
	MethodSettingsReload        = "settings.reload"
	MethodVersion               = "version"
)

type Notification struct {
	Method string
	Params json.RawMessage
}

// RequestObject is an incoming JSON-RPC request. The ID must be a value
// type so an explicit null ID stays distinguishable from an absent one: a
// request with a null ID gets a response, a request without an ID is a
// notification and must not.
type RequestObject struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
	ID      RPCID           `json:"id"`
}

// NotificationObject is an outgoing JSON-RPC notification. Notifications
// never carry an ID.
type NotificationObject struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

type ErrorObject struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type ResponseObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
	Result  any          `json:"result"`
	Error   *ErrorObject `json:"error,omitempty"`
}

// ResponseErrorObject exists for sending errors, so we can omit result from
// the response, but so nil responses are still returned when using the main
// ResponseObject.
type ResponseErrorObject struct {
	JSONRPC string       `json:"jsonrpc"`
	ID      RPCID        `json:"id"`
	Error   *ErrorObject `json:"error"`
}
