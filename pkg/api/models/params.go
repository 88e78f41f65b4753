package models

type InitContextParams struct {
	LogMode     *string `json:"logMode" validate:"omitempty,oneof=none append new"`
	LogFile     *string `json:"logFile" validate:"omitempty"`
	Device      string  `json:"device" validate:"required"`
	RecoveryDir string  `json:"recoveryDir" validate:"required"`
}

type CleanupContextParams struct {
	ContextID string `json:"contextId" validate:"required,contextid"`
}

type DisksParams struct {
	ContextID string `json:"contextId" validate:"required,contextid"`
}

type PartitionsParams struct {
	Arch      *string `json:"arch" validate:"omitempty,arch"`
	ContextID string  `json:"contextId" validate:"required,contextid"`
	Device    string  `json:"device" validate:"required"`
}

type ShutdownParams struct {
	Reason *string `json:"reason"`
	Force  bool    `json:"force"`
}

type HeartbeatParams struct {
	ContextID *string `json:"contextId" validate:"omitempty,contextid"`
}

type AddImageParams struct {
	ContextID string `json:"contextId" validate:"required,contextid"`
	Path      string `json:"path" validate:"required"`
}

type RecoveryStartParams struct {
	Partition *int   `json:"partition" validate:"omitempty,gte=0"`
	ContextID string `json:"contextId" validate:"required,contextid"`
}

type RecoveryStopParams struct {
	ContextID string `json:"contextId" validate:"required,contextid"`
	Force     bool   `json:"force"`
}

type RecoveryStatusParams struct {
	ContextID string `json:"contextId" validate:"required,contextid"`
}

type ContextOptionsParams struct {
	ContextID string `json:"contextId" validate:"required,contextid"`
}

type UpdateContextOptionsParams struct {
	Options   map[string]any `json:"options" validate:"required"`
	ContextID string         `json:"contextId" validate:"required,contextid"`
}

type HistoryParams struct {
	Limit  *int   `json:"limit" validate:"omitempty,gt=0,lte=100"`
	Before *int64 `json:"before" validate:"omitempty,gt=0"`
}

// DiskEventParams is the payload of disks.added and disks.removed
// notifications.
type DiskEventParams struct {
	Device string `json:"device"`
}

// RecoveryEventParams is the payload of recovery.started and
// recovery.stopped notifications. ExitReason is only set on stop.
type RecoveryEventParams struct {
	ContextID  string `json:"contextId"`
	RunID      string `json:"runId"`
	Device     string `json:"device"`
	ExitReason string `json:"exitReason,omitempty"`
}

// ServiceStoppingParams is the payload of the service.stopping
// notification.
type ServiceStoppingParams struct {
	Reason string `json:"reason,omitempty"`
}

type UpdateSettingsParams struct {
	DebugLogging       *bool     `json:"debugLogging"`
	RecoveryDir        *string   `json:"recoveryDir"`
	EnginePath         *string   `json:"enginePath"`
	MaxContexts        *int      `json:"maxContexts" validate:"omitempty,gte=0"`
	AllowImages        *bool     `json:"allowImages"`
	DrainTimeoutSecs   *int      `json:"drainTimeoutSecs" validate:"omitempty,gte=0"`
	AuditRetentionDays *int      `json:"auditRetentionDays" validate:"omitempty,gte=0"`
	DeviceAllow        *[]string `json:"deviceAllow" validate:"omitempty,dive,regex"`
	DeviceDeny         *[]string `json:"deviceDeny" validate:"omitempty,dive,regex"`
}
