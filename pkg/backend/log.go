// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package backend

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
		l := logger.GetBackendLogger().With().Str("component", "backend").Logger()
		log = &l
	})
	return log
}
