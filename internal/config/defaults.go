package config

import "time"

// Default configuration values (spec §6 "Recognised configuration options").
const (
	DefaultServerPort              = 67
	DefaultClientPort              = 68
	DefaultLogLevel                = "info"
	DefaultAllowLocalDHCP          = true
	DefaultAllowDHCPRelays         = false
	DefaultAuthoritative           = false
	DefaultNakRenewals             = false
	DefaultEnableRapidCommit       = true
	DefaultEnableSuspend           = true
	DefaultSuspendThreshold        = 10
	DefaultUnauthorizedTimeout     = 60 * time.Second
	DefaultMisbehavingTimeout      = 150 * time.Second
	DefaultUseCache                = false
	DefaultCacheOnDisk             = false
	DefaultDatabasePoolSize        = 4
	DefaultWorkerPoolSize          = 256
)
