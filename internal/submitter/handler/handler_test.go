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


package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambdacontext"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/smithy-go"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/llm-d-incubation/batch-job-submitter/internal/batchclient"
	store "github.com/llm-d-incubation/batch-job-submitter/internal/store/api"
	"github.com/llm-d-incubation/batch-job-submitter/internal/submitter/config"
	"github.com/llm-d-incubation/batch-job-submitter/internal/submitter/handler"
)

type fakeSubmitter struct {
	mu       sync.Mutex
	requests []*batchclient.JobRequest
	result   *batchclient.JobSubmission
	err      error
}

func (f *fakeSubmitter) SubmitJob(_ context.Context, req *batchclient.JobRequest) (*batchclient.JobSubmission, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeLedger struct {
	records []*store.SubmissionRecord
	err     error
}

func (f *fakeLedger) Record(_ context.Context, rec *store.SubmissionRecord) error {
	if f.err != nil {
		return f.err
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeLedger) Get(_ context.Context, jobID string) (*store.SubmissionRecord, error) {
	for _, r := range f.records {
		if r.JobID == jobID {
			return r, nil
		}
	}
	return nil, nil
}

func (f *fakeLedger) Close() error { return nil }

type fakePusher struct {
	pushes int
	err    error
}

func (f *fakePusher) Push() error {
	f.pushes++
	return f.err
}

func envLookup(env map[string]string) config.LookupFunc {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func fullEnv() map[string]string {
	return map[string]string{
		config.EnvJobName:       "nightly-etl",
		config.EnvJobQueue:      "default-queue",
		config.EnvJobDefinition: "etl-def:3",
	}
}

func bodyMessage(resp events.APIGatewayProxyResponse) string {
	var body map[string]any
	ExpectWithOffset(1, json.Unmarshal([]byte(resp.Body), &body)).To(Succeed())
	ExpectWithOffset(1, body).To(HaveLen(1))
	msg, ok := body["message"].(string)
	ExpectWithOffset(1, ok).To(BeTrue())
	return msg
}

var _ = Describe("Handler", func() {
	var (
		ctx       context.Context
		submitter *fakeSubmitter
	)

	BeforeEach(func() {
		ctx = context.Background()
		submitter = &fakeSubmitter{}
	})

	Context("when the job is accepted", func() {
		BeforeEach(func() {
			submitter.result = &batchclient.JobSubmission{JobID: "abc-123", JobName: "nightly-etl"}
		})

		It("should answer 200 with the submission message", func() {
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())))

			resp, err := h.Handle(ctx, json.RawMessage(`{}`))
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(bodyMessage(resp)).To(Equal("Submitted job [nightly-etl - abc-123] to the job queue [default-queue]"))
			Expect(logOutput()).To(ContainSubstring("Submitted job [nightly-etl - abc-123] to the job queue [default-queue]"))
		})

		It("should pass exactly the configured parameters", func() {
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())))

			_, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			Expect(submitter.requests).To(HaveLen(1))
			req := submitter.requests[0]
			Expect(aws.ToString(req.JobName)).To(Equal("nightly-etl"))
			Expect(aws.ToString(req.JobQueue)).To(Equal("default-queue"))
			Expect(aws.ToString(req.JobDefinition)).To(Equal("etl-def:3"))
		})

		It("should ignore the event payload", func() {
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())))

			resp, err := h.Handle(ctx, json.RawMessage(`{"jobName":"other","jobQueue":"other"}`))
			Expect(err).To(BeNil())
			Expect(bodyMessage(resp)).To(Equal("Submitted job [nightly-etl - abc-123] to the job queue [default-queue]"))
		})

		It("should not emit warnings when everything is configured", func() {
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())))

			_, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			Expect(logOutput()).NotTo(ContainSubstring("cannot get environment variable"))
		})

		It("should record the submission in the ledger", func() {
			ledger := &fakeLedger{}
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())), handler.WithLedger(ledger))

			_, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			Expect(ledger.records).To(HaveLen(1))
			rec := ledger.records[0]
			Expect(rec.JobID).To(Equal("abc-123"))
			Expect(rec.JobName).To(Equal("nightly-etl"))
			Expect(rec.JobQueue).To(Equal("default-queue"))
			Expect(rec.JobDefinition).To(Equal("etl-def:3"))
			Expect(rec.SubmittedAt).NotTo(BeZero())
		})

		It("should keep answering 200 when the ledger fails", func() {
			ledger := &fakeLedger{err: errors.New("redis down")}
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())), handler.WithLedger(ledger))

			resp, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(logOutput()).To(ContainSubstring("Failed to record submission"))
		})

		It("should push metrics after the invocation", func() {
			pusher := &fakePusher{err: errors.New("gateway unreachable")}
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())), handler.WithMetricsPusher(pusher))

			resp, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(pusher.pushes).To(Equal(1))
			Expect(logOutput()).To(ContainSubstring("Failed to push metrics"))
		})

		It("should log the lambda request id", func() {
			lctx := lambdacontext.NewContext(ctx, &lambdacontext.LambdaContext{AwsRequestID: "req-42"})
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())))

			_, err := h.Handle(lctx, nil)
			Expect(err).To(BeNil())
			Expect(logOutput()).To(ContainSubstring("req-42"))
		})
	})

	Context("when the batch service rejects the job", func() {
		BeforeEach(func() {
			submitter.err = &batchclient.ServiceError{
				Code:    "ClientException",
				Message: "Unable to locate job definition",
				Fault:   smithy.FaultClient,
			}
		})

		It("should answer 400 with the service message", func() {
			ledger := &fakeLedger{}
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())), handler.WithLedger(ledger))

			resp, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(bodyMessage(resp)).To(Equal("Unable to locate job definition"))
			Expect(ledger.records).To(BeEmpty())
		})

		It("should log the service message as an error", func() {
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())))

			_, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			out := logOutput()
			Expect(out).To(HavePrefix("E"))
			Expect(out).To(ContainSubstring("Unable to locate job definition"))
		})

		It("should also recognize a wrapped service error", func() {
			submitter.err = fmt.Errorf("submit: %w", submitter.err)
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())))

			resp, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Context("when the submission fails for any other reason", func() {
		It("should return the error instead of a response", func() {
			transportErr := errors.New("dial tcp: connection refused")
			submitter.err = fmt.Errorf("failed to submit job: %w", transportErr)
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())))

			resp, err := h.Handle(ctx, nil)
			Expect(err).To(MatchError(transportErr))
			Expect(resp).To(Equal(events.APIGatewayProxyResponse{}))
		})

		It("should return cancellation as an error", func() {
			submitter.err = context.Canceled
			h := handler.New(submitter, config.NewResolver(envLookup(fullEnv())))

			_, err := h.Handle(ctx, nil)
			Expect(errors.Is(err, context.Canceled)).To(BeTrue())
		})
	})

	Context("when configuration is missing", func() {
		It("should warn about the missing variable and still submit", func() {
			env := fullEnv()
			delete(env, config.EnvJobDefinition)
			submitter.result = &batchclient.JobSubmission{JobID: "abc-123"}
			h := handler.New(submitter, config.NewResolver(envLookup(env)))

			_, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			Expect(logOutput()).To(ContainSubstring("cannot get environment variable: JOB_DEFINITION"))
			Expect(submitter.requests).To(HaveLen(1))
			Expect(submitter.requests[0].JobDefinition).To(BeNil())
			Expect(aws.ToString(submitter.requests[0].JobName)).To(Equal("nightly-etl"))
		})

		It("should pass a set but empty variable through as empty", func() {
			env := fullEnv()
			env[config.EnvJobQueue] = ""
			submitter.err = &batchclient.ServiceError{Code: "ClientException", Message: "jobQueue is required"}
			h := handler.New(submitter, config.NewResolver(envLookup(env)))

			resp, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(logOutput()).To(ContainSubstring("cannot get environment variable: JOB_QUEUE"))
			Expect(submitter.requests[0].JobQueue).NotTo(BeNil())
			Expect(*submitter.requests[0].JobQueue).To(Equal(""))
		})

		It("should warn for every variable when nothing is set", func() {
			submitter.result = &batchclient.JobSubmission{JobID: "x"}
			h := handler.New(submitter, config.NewResolver(envLookup(map[string]string{})))

			_, err := h.Handle(ctx, nil)
			Expect(err).To(BeNil())
			out := logOutput()
			for _, name := range []string{config.EnvJobName, config.EnvJobQueue, config.EnvJobDefinition} {
				Expect(out).To(ContainSubstring("cannot get environment variable: " + name))
			}
			Expect(submitter.requests).To(HaveLen(1))
		})
	})
})

// batchEndpoint emulates the REST JSON protocol of the Batch SubmitJob API.
type batchEndpoint struct {
	mu     sync.Mutex
	bodies []map[string]any
	status int
	errTyp string
	reply  string
}

func (b *batchEndpoint) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer GinkgoRecover()
	Expect(r.Method).To(Equal(http.MethodPost))
	Expect(r.URL.Path).To(Equal("/v1/submitjob"))
	data, err := io.ReadAll(r.Body)
	Expect(err).To(BeNil())
	var body map[string]any
	Expect(json.Unmarshal(data, &body)).To(Succeed())

	b.mu.Lock()
	b.bodies = append(b.bodies, body)
	b.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	if b.errTyp != "" {
		w.Header().Set("X-Amzn-ErrorType", b.errTyp)
	}
	w.WriteHeader(b.status)
	_, _ = w.Write([]byte(b.reply))
}

var _ = Describe("Handler against a Batch endpoint", func() {
	var (
		ctx      context.Context
		endpoint *batchEndpoint
		server   *httptest.Server
		h        *handler.Handler
	)

	BeforeEach(func() {
		ctx = context.Background()
		endpoint = &batchEndpoint{}
		server = httptest.NewServer(endpoint)
		DeferCleanup(server.Close)

		client, err := batchclient.New(ctx, batchclient.Config{
			Region:          "us-east-1",
			Endpoint:        server.URL,
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			MaxAttempts:     1,
		})
		Expect(err).To(BeNil())
		h = handler.New(client, config.NewResolver(envLookup(fullEnv())))
	})

	It("should submit and answer 200 (scenario A)", func() {
		endpoint.status = http.StatusOK
		endpoint.reply = `{"jobArn":"arn:aws:batch:us-east-1:123456789012:job/abc-123","jobName":"nightly-etl","jobId":"abc-123"}`

		resp, err := h.Handle(ctx, nil)
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.Body).To(MatchJSON(`{"message":"Submitted job [nightly-etl - abc-123] to the job queue [default-queue]"}`))

		Expect(endpoint.bodies).To(HaveLen(1))
		Expect(endpoint.bodies[0]).To(Equal(map[string]any{
			"jobName":       "nightly-etl",
			"jobQueue":      "default-queue",
			"jobDefinition": "etl-def:3",
		}))
	})

	It("should answer 400 on a client exception (scenario B)", func() {
		endpoint.status = http.StatusBadRequest
		endpoint.errTyp = "ClientException"
		endpoint.reply = `{"message":"Unable to locate job definition"}`

		resp, err := h.Handle(ctx, nil)
		Expect(err).To(BeNil())
		Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		Expect(resp.Body).To(MatchJSON(`{"message":"Unable to locate job definition"}`))
	})

	It("should fault without calling the service when a parameter is unset (scenario C)", func() {
		env := fullEnv()
		delete(env, config.EnvJobDefinition)
		client, err := batchclient.New(ctx, batchclient.Config{
			Region:          "us-east-1",
			Endpoint:        server.URL,
			AccessKeyID:     "test",
			SecretAccessKey: "test",
			MaxAttempts:     1,
		})
		Expect(err).To(BeNil())
		h = handler.New(client, config.NewResolver(envLookup(env)))

		resp, err := h.Handle(ctx, nil)
		Expect(err).NotTo(BeNil())
		_, isServiceErr := batchclient.IsServiceError(err)
		Expect(isServiceErr).To(BeFalse())
		Expect(resp.StatusCode).To(BeZero())
		Expect(endpoint.bodies).To(BeEmpty())
		Expect(logOutput()).To(ContainSubstring("cannot get environment variable: JOB_DEFINITION"))
	})

	It("should fault when the endpoint is unreachable", func() {
		server.Close()

		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		_, err := h.Handle(ctx, nil)
		Expect(err).NotTo(BeNil())
		_, isServiceErr := batchclient.IsServiceError(err)
		Expect(isServiceErr).To(BeFalse())
	})
})
