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


// Package handler implements the function that submits the configured job to AWS Batch.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-sdk-go-v2/aws"
	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/batch-job-submitter/internal/batchclient"
	store "github.com/llm-d-incubation/batch-job-submitter/internal/store/api"
	"github.com/llm-d-incubation/batch-job-submitter/internal/submitter/config"
	"github.com/llm-d-incubation/batch-job-submitter/internal/submitter/metrics"
	"github.com/llm-d-incubation/batch-job-submitter/internal/util/logging"
)

// MessageBody is the JSON body of every response.
type MessageBody struct {
	Message string `json:"message"`
}

// MetricsPusher is called after every invocation when set.
type MetricsPusher interface {
	Push() error
}

type Handler struct {
	client   batchclient.JobSubmitter
	resolver *config.Resolver
	ledger   store.SubmissionLedger
	pusher   MetricsPusher
	now      func() time.Time
}

type Option func(*Handler)

// WithLedger records every accepted submission in l.
func WithLedger(l store.SubmissionLedger) Option {
	return func(h *Handler) { h.ledger = l }
}

// WithMetricsPusher pushes metrics after every invocation.
func WithMetricsPusher(p MetricsPusher) Option {
	return func(h *Handler) { h.pusher = p }
}

// New returns a Handler using client for every invocation. client is built once per process.
func New(client batchclient.JobSubmitter, resolver *config.Resolver, opts ...Option) *Handler {
	if resolver == nil {
		resolver = config.NewResolver(nil)
	}
	h := &Handler{
		client:   client,
		resolver: resolver,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Handle submits the job named by the environment. The event is not used.
// A service rejection is answered with 400; every other failure is returned as error.
func (h *Handler) Handle(ctx context.Context, event json.RawMessage) (events.APIGatewayProxyResponse, error) {
	ctx, logger := logging.WithInvocation(ctx)
	defer h.pushMetrics(logger)

	params := h.resolver.JobParameters(ctx)
	metrics.RecordMissingConfig(params.Missing()...)

	start := time.Now()
	submission, err := h.client.SubmitJob(ctx, &batchclient.JobRequest{
		JobName:       params.JobName,
		JobQueue:      params.JobQueue,
		JobDefinition: params.JobDefinition,
	})
	if err != nil {
		serviceErr, ok := batchclient.IsServiceError(err)
		if !ok {
			metrics.RecordSubmitDuration(time.Since(start), metrics.ResultFault)
			metrics.RecordSubmission(metrics.ResultFault, faultReason(err))
			return events.APIGatewayProxyResponse{}, err
		}
		metrics.RecordSubmitDuration(time.Since(start), metrics.ResultRejected)
		metrics.RecordSubmission(metrics.ResultRejected, metrics.ReasonServiceError)
		logger.Error(serviceErr, serviceErr.Message, "code", serviceErr.Code)
		return newResponse(http.StatusBadRequest, serviceErr.Message)
	}
	metrics.RecordSubmitDuration(time.Since(start), metrics.ResultSuccess)
	metrics.RecordSubmission(metrics.ResultSuccess, metrics.ReasonNone)

	jobName := aws.ToString(params.JobName)
	jobQueue := aws.ToString(params.JobQueue)
	message := fmt.Sprintf("Submitted job [%s - %s] to the job queue [%s]", jobName, submission.JobID, jobQueue)
	logger.Info(message)

	h.record(ctx, &store.SubmissionRecord{
		JobID:         submission.JobID,
		JobName:       jobName,
		JobQueue:      jobQueue,
		JobDefinition: aws.ToString(params.JobDefinition),
		JobArn:        submission.JobArn,
		SubmittedAt:   h.now(),
	})

	return newResponse(http.StatusOK, message)
}

func (h *Handler) record(ctx context.Context, rec *store.SubmissionRecord) {
	if h.ledger == nil {
		return
	}
	if err := h.ledger.Record(ctx, rec); err != nil {
		metrics.RecordLedgerError()
		klog.FromContext(ctx).Error(err, "Failed to record submission", "jobID", rec.JobID)
	}
}

func (h *Handler) pushMetrics(logger klog.Logger) {
	if h.pusher == nil {
		return
	}
	if err := h.pusher.Push(); err != nil {
		logger.Error(err, "Failed to push metrics")
	}
}

func newResponse(statusCode int, message string) (events.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(MessageBody{Message: message})
	if err != nil {
		return events.APIGatewayProxyResponse{}, fmt.Errorf("failed to marshal response body: %w", err)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: statusCode,
		Body:       string(body),
	}, nil
}

func faultReason(err error) string {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return metrics.ReasonCanceled
	case isParamValidation(err):
		return metrics.ReasonClientError
	default:
		return metrics.ReasonSubmissionFailure
	}
}
