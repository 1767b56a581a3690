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

package history

import (
	"errors"
	"time"
)

var (
	// ErrPathRequired indicates no database path was configured
	// ErrPathRequired 表示未配置数据库路径
	ErrPathRequired = errors.New("history path is required")

	// ErrRecordInvalid indicates a record without a name
	// ErrRecordInvalid 表示记录缺少名称
	ErrRecordInvalid = errors.New("run record requires a name")
)

// DefaultListLimit is the number of rows List returns when no limit is given
// DefaultListLimit 是未指定数量时 List 返回的行数
const DefaultListLimit = 20

// RunRecord is one finished run of a managed process.
// RunRecord 表示托管进程的一次已结束运行。
type RunRecord struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	SessionID string    `gorm:"size:36;index" json:"session_id"`
	Name      string    `gorm:"size:64;index;not null" json:"name"`
	Command   string    `gorm:"size:1024" json:"command"`
	WorkDir   string    `gorm:"size:1024" json:"work_dir"`
	PID       int       `json:"pid"`
	Status    string    `gorm:"size:16" json:"status"`
	ExitCode  int       `json:"exit_code"`
	Error     string    `gorm:"size:2048" json:"error,omitempty"`
	StartedAt time.Time `json:"started_at"`
	EndedAt   time.Time `gorm:"index" json:"ended_at"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName specifies the table name for RunRecord
// TableName 指定 RunRecord 的表名
func (RunRecord) TableName() string {
	return "run_records"
}

// Duration is how long the run lasted
// Duration 是运行持续的时间
func (r *RunRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.EndedAt.IsZero() {
		return 0
	}
	return r.EndedAt.Sub(r.StartedAt)
}
