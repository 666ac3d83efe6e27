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


// Resolution of the job parameters from the process environment.

package config

import (
	"context"
	"os"

	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/batch-job-submitter/internal/util/logging"
)

const (
	EnvJobName       = "JOB_NAME"
	EnvJobQueue      = "JOB_QUEUE"
	EnvJobDefinition = "JOB_DEFINITION"
)

// LookupFunc has the shape of os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// JobParameters are the values read for one invocation. A nil field was not set.
type JobParameters struct {
	JobName       *string
	JobQueue      *string
	JobDefinition *string
}

type Resolver struct {
	lookup LookupFunc
}

// NewResolver returns a Resolver reading from lookup, or from the process environment when nil.
func NewResolver(lookup LookupFunc) *Resolver {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	return &Resolver{lookup: lookup}
}

// Lookup returns the value of name, or nil when it is unset.
// Unset and empty values are reported with a warning; neither stops the caller.
func (r *Resolver) Lookup(ctx context.Context, name string) *string {
	value, ok := r.lookup(name)
	if !ok || value == "" {
		klog.Warningf("cannot get environment variable: %s", name)
		klog.FromContext(ctx).V(logging.DEBUG).Info("Environment variable missing", "name", name, "set", ok)
	}
	if !ok {
		return nil
	}
	return &value
}

// JobParameters resolves the three job parameters for one invocation.
func (r *Resolver) JobParameters(ctx context.Context) JobParameters {
	return JobParameters{
		JobName:       r.Lookup(ctx, EnvJobName),
		JobQueue:      r.Lookup(ctx, EnvJobQueue),
		JobDefinition: r.Lookup(ctx, EnvJobDefinition),
	}
}

// Missing lists the parameters that were unset or empty, in resolution order.
func (p JobParameters) Missing() []string {
	var missing []string
	for _, f := range []struct {
		name  string
		value *string
	}{
		{EnvJobName, p.JobName},
		{EnvJobQueue, p.JobQueue},
		{EnvJobDefinition, p.JobDefinition},
	} {
		if f.value == nil || *f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}
