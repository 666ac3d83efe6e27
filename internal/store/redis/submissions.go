/*
Copyright 2026 The llm-d Authors

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/


// Package redis implements the submission ledger on top of redis.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/llm-d-incubation/batch-job-submitter/internal/store/api"
	"github.com/llm-d-incubation/batch-job-submitter/internal/util/logging"
	uredis "github.com/llm-d-incubation/batch-job-submitter/internal/util/redis"
	gredis "github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const submissionKeyPart = "submission:"

type SubmissionLedgerRedis struct {
	rds       *gredis.Client
	keyPrefix string
	ttl       time.Duration
}

var _ api.SubmissionLedger = (*SubmissionLedgerRedis)(nil)

func NewSubmissionLedgerRedis(ctx context.Context, cfg *uredis.RedisClientConfig, keyPrefix string, ttl time.Duration) (
	*SubmissionLedgerRedis, error,
) {
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid ledger ttl %s", ttl)
	}
	rds, err := uredis.NewRedisClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create redis client: %w", err)
	}
	return &SubmissionLedgerRedis{rds: rds, keyPrefix: keyPrefix, ttl: ttl}, nil
}

func (l *SubmissionLedgerRedis) key(jobID string) string {
	return l.keyPrefix + submissionKeyPart + jobID
}

func (l *SubmissionLedgerRedis) Record(ctx context.Context, rec *api.SubmissionRecord) error {
	if rec == nil {
		return fmt.Errorf("submission record is nil")
	}
	if err := rec.IsValid(); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal submission record: %w", err)
	}
	if err := l.rds.Set(ctx, l.key(rec.JobID), data, l.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store submission record: %w", err)
	}
	klog.FromContext(ctx).V(logging.DEBUG).Info("Recorded submission", "jobID", rec.JobID, "ttl", l.ttl)
	return nil
}

func (l *SubmissionLedgerRedis) Get(ctx context.Context, jobID string) (*api.SubmissionRecord, error) {
	data, err := l.rds.Get(ctx, l.key(jobID)).Bytes()
	if err != nil {
		if errors.Is(err, gredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get submission record: %w", err)
	}
	rec := &api.SubmissionRecord{}
	if err := json.Unmarshal(data, rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal submission record: %w", err)
	}
	return rec, nil
}

// Ping reports whether redis is reachable.
func (l *SubmissionLedgerRedis) Ping(ctx context.Context) error {
	return l.rds.Ping(ctx).Err()
}

func (l *SubmissionLedgerRedis) Close() error {
	return l.rds.Close()
}
