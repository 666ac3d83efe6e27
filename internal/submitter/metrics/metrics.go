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


package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

// labels definition
const (
	// result labels
	ResultSuccess  = "success"
	ResultRejected = "rejected" // the batch service refused the job
	ResultFault    = "fault"    // not handled, reported to the invocation framework

	// reason labels
	ReasonNone              = "none"
	ReasonServiceError      = "service_error"
	ReasonClientError       = "client_error"
	ReasonCanceled          = "canceled"
	ReasonSubmissionFailure = "submission_failure"
)

var (
	// number of submissions by outcome
	submissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_submissions_total",
			Help: "Total number of job submissions by result",
		}, []string{"result", "reason"},
	)

	// duration of the SubmitJob call
	submitDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "job_submit_duration_seconds",
			Help: "Duration of the batch SubmitJob call in seconds",
			// Buckets -
			// Bucket 1: ~ 0.025s
			// Bucket 2: ~ 0.05s
			// ...
			// Bucket 10: ~ 12.8s
			Buckets: prometheus.ExponentialBuckets(0.025, 2, 10),
		}, []string{"result"},
	)

	// missing job parameters by environment variable
	missingConfig = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "job_config_missing_total",
			Help: "Total number of invocations with an unset or empty job parameter",
		},
		[]string{"variable"},
	)

	// submission ledger write failures
	ledgerErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "job_ledger_errors_total",
			Help: "Total number of failures to record a submission in the ledger",
		},
	)
)

var collectors = []prometheus.Collector{submissions, submitDuration, missingConfig, ledgerErrors}

func init() {
	for _, c := range collectors {
		prometheus.MustRegister(c)
	}
}

// Recorder funcs

// RecordSubmission increments the submission count for an outcome.
func RecordSubmission(result string, reason string) {
	submissions.WithLabelValues(result, reason).Inc()
}

// RecordSubmitDuration observes the time spent in the SubmitJob call.
func RecordSubmitDuration(duration time.Duration, result string) {
	submitDuration.WithLabelValues(result).Observe(duration.Seconds())
}

// RecordMissingConfig increments the missing count for each named variable.
func RecordMissingConfig(variables ...string) {
	for _, v := range variables {
		missingConfig.WithLabelValues(v).Inc()
	}
}

// RecordLedgerError increments the ledger failure count.
func RecordLedgerError() {
	ledgerErrors.Inc()
}

// Pusher sends the submitter metrics to a Prometheus Pushgateway.
// Lambda has no scrape endpoint, so this is the way out for invocation metrics.
type Pusher struct {
	pusher *push.Pusher
}

func NewPusher(url, job string) *Pusher {
	p := push.New(url, job)
	for _, c := range collectors {
		p = p.Collector(c)
	}
	return &Pusher{pusher: p}
}

func (p *Pusher) Push() error {
	if err := p.pusher.Add(); err != nil {
		return fmt.Errorf("failed to push metrics: %w", err)
	}
	return nil
}
