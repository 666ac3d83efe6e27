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


// Package batchclient provides the AWS Batch client used to submit jobs.
package batchclient

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/batch"
)

type batchAPI interface {
	SubmitJob(ctx context.Context, params *batch.SubmitJobInput, optFns ...func(*batch.Options)) (*batch.SubmitJobOutput, error)
}

// JobSubmitter is the single operation the handler needs from the batch service.
type JobSubmitter interface {
	SubmitJob(ctx context.Context, req *JobRequest) (*JobSubmission, error)
}

// JobRequest holds the named parameters of a submission. A nil field is sent as absent.
type JobRequest struct {
	JobName       *string
	JobQueue      *string
	JobDefinition *string
}

// JobSubmission is what the service returned for an accepted job.
type JobSubmission struct {
	JobID   string
	JobName string
	JobArn  string
}

type Client struct {
	batchClient batchAPI
}

var _ JobSubmitter = (*Client)(nil)

type Config struct {
	Region          string
	Endpoint        string
	AccessKeyID     string
	SecretAccessKey string
	MaxAttempts     int
}

func New(ctx context.Context, cfg Config) (*Client, error) {
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}

	if cfg.AccessKeyID != "" && cfg.SecretAccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	if cfg.MaxAttempts > 0 {
		opts = append(opts, config.WithRetryMaxAttempts(cfg.MaxAttempts))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return NewFromConfig(awsCfg, cfg.Endpoint), nil
}

// NewFromConfig builds a client from an already loaded aws.Config.
func NewFromConfig(awsCfg aws.Config, endpoint string) *Client {
	var batchOpts []func(*batch.Options)
	if endpoint != "" {
		batchOpts = append(batchOpts, func(o *batch.Options) {
			o.BaseEndpoint = aws.String(endpoint)
		})
	}
	return &Client{batchClient: batch.NewFromConfig(awsCfg, batchOpts...)}
}

// SubmitJob submits one job. A rejection by the service is returned as *ServiceError;
// any other failure is returned as is.
func (c *Client) SubmitJob(ctx context.Context, req *JobRequest) (*JobSubmission, error) {
	if req == nil {
		return nil, errors.New("job request is nil")
	}

	out, err := c.batchClient.SubmitJob(ctx, &batch.SubmitJobInput{
		JobName:       req.JobName,
		JobQueue:      req.JobQueue,
		JobDefinition: req.JobDefinition,
	})
	if err != nil {
		if serviceErr, ok := asServiceError(err); ok {
			return nil, serviceErr
		}
		return nil, fmt.Errorf("failed to submit job: %w", err)
	}

	return &JobSubmission{
		JobID:   aws.ToString(out.JobId),
		JobName: aws.ToString(out.JobName),
		JobArn:  aws.ToString(out.JobArn),
	}, nil
}
