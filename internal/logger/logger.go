/*
 * Licensed to the Apache Software Foundation (ASF) under one or more
 * contributor license agreements.  See the NOTICE file distributed with
 * this work for additional information regarding copyright ownership.
 * The ASF licenses this file to You under the Apache License, Version 2.0
 * (the "License"); you may not use this file except in compliance with
 * the License.  You may obtain a copy of the License at
 *
 *    http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package logger builds the zap logger used by devrun.
// logger 包构建 devrun 使用的 zap 日志记录器。
//
// Human readable output goes to the diagnostic stream (stderr). When a log
// file is configured, JSON records are also written to a rotating file.
// 可读输出写入诊断流（标准错误）。配置日志文件时，JSON 记录同时写入轮转文件。
package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/drawguess/devrun/internal/config"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger wraps the zap logger with the resources it owns
// Logger 封装 zap 日志记录器及其持有的资源
type Logger struct {
	*zap.Logger

	// SessionID identifies one devrun invocation in every record
	// SessionID 在每条记录中标识一次 devrun 调用
	SessionID string

	rotator *lumberjack.Logger
}

// New creates a logger writing to w and, if configured, to a rotating file
// New 创建写入 w 的日志记录器，若已配置则同时写入轮转文件
func New(cfg config.LogConfig, w io.Writer) (*Logger, error) {
	level, err := zapcore.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
	}

	if w == nil {
		w = os.Stderr
	}

	consoleCfg := zap.NewDevelopmentEncoderConfig()
	consoleCfg.EncodeTime = zapcore.TimeEncoderOfLayout("15:04:05")
	consoleCfg.CallerKey = ""
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(w), level),
	}

	var rotator *lumberjack.Logger
	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		rotator = &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSize,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAge,
		}
		fileCfg := zap.NewProductionEncoderConfig()
		fileCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(fileCfg), zapcore.AddSync(rotator), level))
	}

	sessionID := uuid.NewString()
	base := zap.New(zapcore.NewTee(cores...)).With(zap.String("session_id", sessionID))

	return &Logger{
		Logger:    base,
		SessionID: sessionID,
		rotator:   rotator,
	}, nil
}

// NewNop returns a logger that discards everything, for tests
// NewNop 返回丢弃所有输出的日志记录器，用于测试
func NewNop() *Logger {
	return &Logger{Logger: zap.NewNop(), SessionID: uuid.NewString()}
}

// Close flushes buffered records and closes the log file
// Close 刷新缓冲的记录并关闭日志文件
func (l *Logger) Close() error {
	// Sync on a terminal returns EINVAL on some platforms; ignore it.
	// 在某些平台上对终端 Sync 会返回 EINVAL，忽略即可。
	_ = l.Logger.Sync()
	if l.rotator != nil {
		return l.rotator.Close()
	}
	return nil
}
