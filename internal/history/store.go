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
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Store provides data access operations for RunRecord entities.
// Store 提供 RunRecord 实体的数据访问操作。
type Store struct {
	db *gorm.DB
}

// Open opens (creating if needed) the history database at path.
// Open 打开（必要时创建）path 处的历史数据库。
func Open(path string, zl *zap.Logger) (*Store, error) {
	if zl == nil {
		zl = zap.NewNop()
	}
	db, err := openDatabase(path, zl)
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Record inserts a run record, filling EndedAt when unset.
// Record 插入一条运行记录，未设置 EndedAt 时自动填充。
func (s *Store) Record(ctx context.Context, rec *RunRecord) error {
	if rec == nil || rec.Name == "" {
		return ErrRecordInvalid
	}
	if rec.EndedAt.IsZero() {
		rec.EndedAt = time.Now()
	}
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record run %s: %w", rec.Name, err)
	}
	return nil
}

// List returns up to limit records, newest first. A non-positive limit uses DefaultListLimit.
// List 返回最多 limit 条记录，按时间倒序。limit 非正时使用 DefaultListLimit。
func (s *Store) List(ctx context.Context, limit int) ([]*RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	var records []*RunRecord
	err := s.db.WithContext(ctx).
		Order("ended_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return records, nil
}

// ListSession returns every record of one session in insertion order
// ListSession 按插入顺序返回某个会话的所有记录
func (s *Store) ListSession(ctx context.Context, sessionID string) ([]*RunRecord, error) {
	var records []*RunRecord
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("id ASC").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list session %s: %w", sessionID, err)
	}
	return records, nil
}

// Close closes the underlying database connection.
// Close 关闭底层数据库连接。
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
