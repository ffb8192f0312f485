// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config.yaml log.levels

// GetTemporalLogger returns a logger for Temporal client and worker internals
func GetTemporalLogger() zerolog.Logger {
	return GetLogger("temporal")
}

// GetAgentLogger returns a logger for agent registration and built-in workflows
func GetAgentLogger() zerolog.Logger {
	return GetLogger("agent")
}

// GetA2ALogger returns a logger for agent-to-agent messaging and cross-workflow calls
func GetA2ALogger() zerolog.Logger {
	return GetLogger("a2a")
}

// GetDatabaseLogger returns a logger for the local document store
func GetDatabaseLogger() zerolog.Logger {
	return GetLogger("database")
}

// GetAPILogger returns a logger for the webhook ingress
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}

// GetBackendLogger returns a logger for the platform backend client
func GetBackendLogger() zerolog.Logger {
	return GetLogger("backend")
}
