// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server is the HTTP ingress for agents. Webhook calls are routed to
// the built-in workflow of the addressed agent and answered with whatever its
// webhook handler returns.
package server

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/XiansAiPlatform/XiansAi.Lib-sub000/internal/logger"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}
