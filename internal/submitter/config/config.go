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


// The submitter's configuration definitions.

package config

import (
	"flag"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	ModeLambda = "lambda"
	ModeServer = "server"
	ModeOnce   = "once"
)

type SubmitterConfig struct {
	Mode string `json:"mode" yaml:"mode" mapstructure:"mode"`

	AWSRegion          string `json:"aws_region" yaml:"aws_region" mapstructure:"aws_region"`
	AWSEndpoint        string `json:"aws_endpoint" yaml:"aws_endpoint" mapstructure:"aws_endpoint"`
	AWSAccessKeyID     string `json:"aws_access_key_id" yaml:"aws_access_key_id" mapstructure:"aws_access_key_id"`
	AWSSecretAccessKey string `json:"aws_secret_access_key" yaml:"aws_secret_access_key" mapstructure:"aws_secret_access_key"`
	AWSMaxAttempts     int    `json:"aws_max_attempts" yaml:"aws_max_attempts" mapstructure:"aws_max_attempts"`

	ListenAddress string `json:"listen_address" yaml:"listen_address" mapstructure:"listen_address"`
	TLSCertFile   string `json:"tls_cert_file" yaml:"tls_cert_file" mapstructure:"tls_cert_file"`
	TLSKeyFile    string `json:"tls_key_file" yaml:"tls_key_file" mapstructure:"tls_key_file"`

	PushgatewayURL string `json:"pushgateway_url" yaml:"pushgateway_url" mapstructure:"pushgateway_url"`

	RedisURL    string        `json:"redis_url" yaml:"redis_url" mapstructure:"redis_url"`
	RedisPrefix string        `json:"redis_prefix" yaml:"redis_prefix" mapstructure:"redis_prefix"`
	RecordTTL   time.Duration `json:"record_ttl" yaml:"record_ttl" mapstructure:"record_ttl"`
}

// LoadFromYAML loads the configuration from a YAML file.
func (c *SubmitterConfig) LoadFromYAML(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	decoder := yaml.NewDecoder(file)
	if err := decoder.Decode(c); err != nil {
		return err
	}
	return nil
}

// AddFlags registers a command line override for every field. Defaults are the current field values.
func (c *SubmitterConfig) AddFlags(fs *flag.FlagSet) {
	fs.StringVar(&c.Mode, "mode", c.Mode, "Run mode: lambda, server or once")
	fs.StringVar(&c.AWSRegion, "aws-region", c.AWSRegion, "AWS region override")
	fs.StringVar(&c.AWSEndpoint, "aws-endpoint", c.AWSEndpoint, "AWS Batch endpoint override")
	fs.IntVar(&c.AWSMaxAttempts, "aws-max-attempts", c.AWSMaxAttempts, "Max attempts of the SDK retryer (0 keeps the SDK default)")
	fs.StringVar(&c.ListenAddress, "listen-address", c.ListenAddress, "Address of the local invoke server")
	fs.StringVar(&c.TLSCertFile, "tls-cert-file", c.TLSCertFile, "TLS certificate of the local invoke server")
	fs.StringVar(&c.TLSKeyFile, "tls-key-file", c.TLSKeyFile, "TLS key of the local invoke server")
	fs.StringVar(&c.PushgatewayURL, "pushgateway-url", c.PushgatewayURL, "Prometheus Pushgateway to push metrics to after each invocation")
	fs.StringVar(&c.RedisURL, "redis-url", c.RedisURL, "Redis URL of the submission ledger (disabled when empty)")
	fs.DurationVar(&c.RecordTTL, "record-ttl", c.RecordTTL, "TTL of submission ledger records")
}

func (c *SubmitterConfig) Validate() error {
	switch c.Mode {
	case ModeLambda, ModeServer, ModeOnce:
	default:
		return fmt.Errorf("invalid mode %q", c.Mode)
	}
	if c.Mode == ModeServer && c.ListenAddress == "" {
		return fmt.Errorf("listen address is required in %s mode", ModeServer)
	}
	if (c.TLSCertFile == "") != (c.TLSKeyFile == "") {
		return fmt.Errorf("tls cert file and tls key file must be set together")
	}
	if (c.AWSAccessKeyID == "") != (c.AWSSecretAccessKey == "") {
		return fmt.Errorf("aws access key id and secret access key must be set together")
	}
	if c.AWSMaxAttempts < 0 {
		return fmt.Errorf("aws max attempts must not be negative")
	}
	if c.RedisURL != "" && c.RecordTTL <= 0 {
		return fmt.Errorf("record ttl must be positive when the submission ledger is enabled")
	}
	return nil
}

// NewConfig returns a new SubmitterConfig with default values.
func NewConfig() *SubmitterConfig {
	return &SubmitterConfig{
		Mode:          ModeLambda,
		ListenAddress: ":8080",
		RedisPrefix:   "batch-job-submitter:",
		RecordTTL:     24 * time.Hour,
	}
}
