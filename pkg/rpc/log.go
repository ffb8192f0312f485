// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package rpc

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
		l := logger.GetA2ALogger().With().Str("component", "rpc").Logger()
		log = &l
	})
	return log
}
