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


// The entry point of the batch job submitter.
// It runs as an AWS Lambda function, as a local invoke server, or once from the command line.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/joho/godotenv"
	"k8s.io/klog/v2"

	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/health"
	"github.com/llm-d-incubation/batch-job-submitter/internal/apiserver/server"
	"github.com/llm-d-incubation/batch-job-submitter/internal/batchclient"
	ledger "github.com/llm-d-incubation/batch-job-submitter/internal/store/redis"
	"github.com/llm-d-incubation/batch-job-submitter/internal/submitter/config"
	"github.com/llm-d-incubation/batch-job-submitter/internal/submitter/handler"
	"github.com/llm-d-incubation/batch-job-submitter/internal/submitter/metrics"
	uredis "github.com/llm-d-incubation/batch-job-submitter/internal/util/redis"
)

const (
	serviceName       = "batch-job-submitter"
	configPathEnv     = "SUBMITTER_CONFIG"
	defaultConfigPath = "config.yaml"
)

func main() {
	defer klog.Flush()
	if err := run(); err != nil {
		klog.ErrorS(err, "batch job submitter failed")
		klog.Flush()
		os.Exit(1)
	}
}

func run() error {
	cfg := config.NewConfig()

	fs := flag.NewFlagSet(serviceName, flag.ContinueOnError)
	klog.InitFlags(fs)
	cfgFilePath := fs.String("config", configPath(), "Path to configuration file")
	cfg.AddFlags(fs)
	if err := fs.Parse(os.Args[1:]); err != nil {
		return fmt.Errorf("failed to parse flags: %w", err)
	}

	// flags given on the command line win over the config file
	explicit := map[string]string{}
	fs.Visit(func(f *flag.Flag) { explicit[f.Name] = f.Value.String() })
	if err := cfg.LoadFromYAML(*cfgFilePath); err != nil {
		klog.InfoS("Failed to load config file, using defaults", "path", *cfgFilePath, "err", err)
	}
	for name, value := range explicit {
		if err := fs.Set(name, value); err != nil {
			return fmt.Errorf("failed to apply flag %s: %w", name, err)
		}
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("failed to validate config: %w", err)
	}

	if cfg.Mode != config.ModeLambda {
		if err := godotenv.Load(); err != nil {
			klog.InfoS("No .env file found, using system environment variables")
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()
	logger := klog.FromContext(ctx)

	// built once, shared by every invocation of this process
	client, err := batchclient.New(ctx, batchclient.Config{
		Region:          cfg.AWSRegion,
		Endpoint:        cfg.AWSEndpoint,
		AccessKeyID:     cfg.AWSAccessKeyID,
		SecretAccessKey: cfg.AWSSecretAccessKey,
		MaxAttempts:     cfg.AWSMaxAttempts,
	})
	if err != nil {
		return fmt.Errorf("failed to create batch client: %w", err)
	}

	var opts []handler.Option
	deps := map[string]health.Pinger{}
	if cfg.RedisURL != "" {
		ldg, err := ledger.NewSubmissionLedgerRedis(ctx, &uredis.RedisClientConfig{
			Url:         cfg.RedisURL,
			ServiceName: serviceName,
		}, cfg.RedisPrefix, cfg.RecordTTL)
		if err != nil {
			return fmt.Errorf("failed to create submission ledger: %w", err)
		}
		defer ldg.Close()
		opts = append(opts, handler.WithLedger(ldg))
		deps["ledger"] = ldg
	}
	if cfg.PushgatewayURL != "" {
		opts = append(opts, handler.WithMetricsPusher(metrics.NewPusher(cfg.PushgatewayURL, serviceName)))
	}

	h := handler.New(client, config.NewResolver(nil), opts...)

	logger.Info("starting batch job submitter", "mode", cfg.Mode)
	switch cfg.Mode {
	case config.ModeServer:
		srv, err := server.New(cfg, h, deps)
		if err != nil {
			return fmt.Errorf("failed to create invoke server: %w", err)
		}
		return srv.Start(ctx)
	case config.ModeOnce:
		resp, err := h.Handle(ctx, json.RawMessage("{}"))
		if err != nil {
			return err
		}
		return json.NewEncoder(os.Stdout).Encode(resp)
	default:
		lambda.StartWithOptions(h.Handle, lambda.WithContext(ctx))
		return nil
	}
}

func configPath() string {
	if p := os.Getenv(configPathEnv); p != "" {
		return p
	}
	return defaultConfigPath
}
