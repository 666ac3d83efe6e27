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


package api

import (
	"context"
	"fmt"
	"time"
)

// SubmissionLedger keeps a short lived record of accepted job submissions.
type SubmissionLedger interface {
	// Record stores the submission under its job ID. The record expires after the ledger's TTL.
	Record(ctx context.Context, rec *SubmissionRecord) error

	// Get returns the record of a job ID, or (nil, nil) if there is none.
	Get(ctx context.Context, jobID string) (*SubmissionRecord, error)

	// Close releases any resources held by the implementation.
	Close() error
}

type SubmissionRecord struct {
	JobID         string    `json:"job_id"`         // [mandatory] ID assigned by the batch service.
	JobName       string    `json:"job_name"`       // [optional] Name the job was submitted with.
	JobQueue      string    `json:"job_queue"`      // [optional] Queue the job was submitted to.
	JobDefinition string    `json:"job_definition"` // [optional] Definition the job was submitted with.
	JobArn        string    `json:"job_arn,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

func (r *SubmissionRecord) IsValid() error {
	if len(r.JobID) == 0 {
		return fmt.Errorf("job ID is empty")
	}
	if r.SubmittedAt.IsZero() {
		return fmt.Errorf("submission time is zero for job ID %s", r.JobID)
	}
	return nil
}
