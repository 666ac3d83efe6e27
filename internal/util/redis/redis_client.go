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


// This file provides redis client utilities.

package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	utls "github.com/llm-d-incubation/batch-job-submitter/internal/util/tls"
	gredis "github.com/redis/go-redis/v9"
	"k8s.io/klog/v2"
)

const (
	REDIS_PING_WAIT_SEC = 10
)

type RedisClientConfig struct {
	Url          string
	DbIdx        int
	EnableTLS    bool
	Insecure     bool
	Certificates *utls.Certificates
	ServiceName  string
	Timeout      time.Duration // Timeout for socket operations: dial, read, write.
	MaxRetries   int           // Maximum number of retries before giving up. Default is 3 retries; -1 (not 0) disables retries.
	PoolSize     int           // Base number of socket connections. Default is 10 per CPU.
}

func NewRedisClient(ctx context.Context, cnf *RedisClientConfig) (*gredis.Client, error) {
	var (
		redisOps  *gredis.Options
		tlsConfig *tls.Config
		err       error
	)
	if ctx == nil {
		ctx = context.Background()
	}
	logger := klog.FromContext(ctx)
	if cnf == nil {
		err = fmt.Errorf("redis config was not provided")
		logger.Error(err, "NewRedisClient")
		return nil, err
	}
	if cnf.Url == "" {
		err = fmt.Errorf("redis config has empty url")
		logger.Error(err, "NewRedisClient")
		return nil, err
	}
	redisOps, err = gredis.ParseURL(cnf.Url)
	if err != nil {
		logger.Error(err, "NewRedisClient")
		return nil, err
	}
	if redisOps.ClientName == "" {
		redisOps.ClientName = clientName(cnf.ServiceName)
	}
	if cnf.DbIdx > 0 {
		redisOps.DB = cnf.DbIdx
	}
	if cnf.Timeout != 0 {
		redisOps.DialTimeout = cnf.Timeout
		redisOps.ReadTimeout = cnf.Timeout
		redisOps.WriteTimeout = cnf.Timeout
	}
	redisOps.ContextTimeoutEnabled = true
	if cnf.MaxRetries != 0 {
		redisOps.MaxRetries = cnf.MaxRetries
	}
	if cnf.PoolSize > 0 {
		redisOps.PoolSize = cnf.PoolSize
	}
	if cnf.EnableTLS {
		certFile, keyFile, caCertFile := "", "", ""
		if cnf.Certificates != nil && !cnf.Certificates.IsEmpty() {
			certCf := cnf.Certificates
			certFile = utls.JoinCertPath(certCf.Dir, certCf.CertFile)
			keyFile = utls.JoinCertPath(certCf.Dir, certCf.KeyFile)
			caCertFile = utls.JoinCertPath(certCf.Dir, certCf.CaCertFile)
		}
		tlsConfig, err = utls.GetTlsConfig(
			utls.LOAD_TYPE_CLIENT,
			cnf.Insecure,
			certFile,
			keyFile,
			caCertFile,
		)
		if err != nil {
			logger.Error(err, "NewRedisClient")
			return nil, err
		}
	}
	if tlsConfig != nil {
		redisOps.TLSConfig = tlsConfig
	}
	rds := gredis.NewClient(redisOps)
	pctx, cancel := context.WithTimeout(ctx, REDIS_PING_WAIT_SEC*time.Second)
	defer cancel()
	if err = rds.Ping(pctx).Err(); err != nil {
		logger.Error(err, "NewRedisClient")
		rds.Close()
		return nil, err
	}
	logger.Info("NewRedisClient", "clientName", redisOps.ClientName, "addr", redisOps.Addr)
	return rds, nil
}

// clientName identifies this process in CLIENT LIST output.
func clientName(serviceName string) string {
	hostname, _ := os.Hostname()
	suffix := uuid.NewString()[:8]
	if serviceName != "" {
		return fmt.Sprintf("%s-%s-%d-%s", serviceName, hostname, os.Getpid(), suffix)
	}
	return fmt.Sprintf("%s-%d-%s", hostname, os.Getpid(), suffix)
}
