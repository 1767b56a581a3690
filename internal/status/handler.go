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

package status

import (
	"errors"
	"net/http"

	"github.com/drawguess/devrun/internal/process"
	"github.com/gin-gonic/gin"
)

type handler struct {
	procs     ProcessSource
	sessionID string
}

// Health handles GET /api/v1/health
// Health 处理 GET /api/v1/health
func (h *handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":     "ok",
		"session_id": h.sessionID,
	})
}

// ListProcesses handles GET /api/v1/processes
// ListProcesses 处理 GET /api/v1/processes
func (h *handler) ListProcesses(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"processes": h.procs.ListProcesses(),
	})
}

// GetProcess handles GET /api/v1/processes/:name
// GetProcess 处理 GET /api/v1/processes/:name
func (h *handler) GetProcess(c *gin.Context) {
	info, err := h.procs.GetStatus(c.Param("name"))
	if err != nil {
		if errors.Is(err, process.ErrProcessNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "process not found / 进程不存在"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, info)
}
