/*
Copyright 2025 Midas Labs Authors.

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

package config

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"strings"
	"sync/atomic"

	"github.com/kelseyhightower/envconfig"

	"github.com/sirupsen/logrus"
)

const (
	DEFAULT_PORT = "5001"

	// Queue names are fixed at startup; workers subscribe to the same names.
	DEFAULT_WEBHOOK_QUEUE = "midas:webhooks"
	DEFAULT_EXPIRY_QUEUE  = "midas:operation-expiry"
)

var ConfigStore atomic.Value

type ServerConfig struct {
	SSL       bool   `json:"ssl" envconfig:"MIDAS_SERVER_SSL"`
	Secure    bool   `json:"secure" envconfig:"MIDAS_SERVER_SECURE"`
	SecretKey string `json:"secret_key" envconfig:"MIDAS_SERVER_SECRET_KEY"`
	Domain    string `json:"domain" envconfig:"MIDAS_SERVER_SSL_DOMAIN"`
	Email     string `json:"ssl_email" envconfig:"MIDAS_SERVER_SSL_EMAIL"`
	Port      string `json:"port" envconfig:"MIDAS_SERVER_PORT"`
}

type DataSourceConfig struct {
	Dns string `json:"dns" envconfig:"MIDAS_DATA_SOURCE_DNS"`
}

type RedisConfig struct {
	Dns string `json:"dns" envconfig:"MIDAS_REDIS_DNS"`
}

type QueueConfig struct {
	WebhookQueue        string `json:"webhook_queue" envconfig:"MIDAS_QUEUE_WEBHOOK"`
	ExpiryQueue         string `json:"expiry_queue" envconfig:"MIDAS_QUEUE_EXPIRY"`
	PendingOperationTTL int    `json:"pending_operation_ttl_hours" envconfig:"MIDAS_PENDING_OPERATION_TTL_HOURS"`
	MaxRetryAttempts    int    `json:"max_retry_attempts" envconfig:"MIDAS_QUEUE_MAX_RETRY_ATTEMPTS"`
}

// LedgerConfig bounds the retry loop around CONFLICT failures (lock timeouts,
// deadlocks, serialization errors) on ledger calls.
type LedgerConfig struct {
	MaxConflictRetries int `json:"max_conflict_retries" envconfig:"MIDAS_LEDGER_MAX_CONFLICT_RETRIES"`
}

type RateLimitConfig struct {
	RequestsPerSecond  *float64 `json:"requests_per_second" envconfig:"MIDAS_RATE_LIMIT_RPS"`
	Burst              *int     `json:"burst" envconfig:"MIDAS_RATE_LIMIT_BURST"`
	CleanupIntervalSec *int     `json:"cleanup_interval_sec" envconfig:"MIDAS_RATE_LIMIT_CLEANUP_INTERVAL_SEC"`
}

type SlackWebhook struct {
	WebhookUrl string `json:"webhook_url"`
}

type Notification struct {
	Slack   SlackWebhook `json:"slack"`
	Webhook struct {
		Url     string            `json:"url"`
		Headers map[string]string `json:"headers"`
	} `json:"webhook"`
}

type Configuration struct {
	ProjectName  string           `json:"project_name" envconfig:"MIDAS_PROJECT_NAME"`
	Server       ServerConfig     `json:"server"`
	DataSource   DataSourceConfig `json:"data_source"`
	Redis        RedisConfig      `json:"redis"`
	Queue        QueueConfig      `json:"queue"`
	Ledger       LedgerConfig     `json:"ledger"`
	Currencies   []string         `json:"currencies"`
	Notification Notification     `json:"notification"`
	RateLimit    RateLimitConfig  `json:"rate_limit"`
}

// CurrencyKnown reports whether a currency code is enabled for this deployment.
func (cnf *Configuration) CurrencyKnown(code string) bool {
	for _, c := range cnf.Currencies {
		if strings.EqualFold(c, code) {
			return true
		}
	}
	return false
}

func loadConfigFromFile(file string) error {
	var cnf Configuration
	_, err := os.Stat(file)
	if err == nil {
		f, err := os.Open(file)
		if err != nil {
			return err
		}
		err = json.NewDecoder(f).Decode(&cnf)
		if err != nil {
			return err
		}
	} else if errors.Is(err, os.ErrNotExist) {
		log.Println("config json not passed, will use env variables")
	}

	// override config from environment variables
	err = envconfig.Process("midas", &cnf)
	if err != nil {
		return err
	}

	err = cnf.validateAndAddDefaults()
	if err != nil {
		return err
	}

	ConfigStore.Store(&cnf)
	return err
}

func InitConfig(configFile string) error {
	logger()
	return loadConfigFromFile(configFile)
}

func Fetch() (*Configuration, error) {
	config := ConfigStore.Load()
	c, ok := config.(*Configuration)
	if !ok {
		return nil, errors.New("config not loaded from file. Create a json file called midas.json with your config")
	}
	return c, nil
}

func (cnf *Configuration) validateAndAddDefaults() error {
	if cnf.ProjectName == "" {
		log.Println("Warning: Project name is empty. Setting a default name.")
		cnf.ProjectName = "Midas Server"
	}

	if cnf.DataSource.Dns == "" {
		log.Println("Error: Data source DNS is empty. It's a required field.")
		return errors.New("data source DNS is required")
	}

	if cnf.Redis.Dns == "" {
		log.Println("Error: Redis DNS is empty. It's a required field.")
		return errors.New("redis DNS is required")
	}

	cnf.ProjectName = strings.TrimSpace(cnf.ProjectName)
	cnf.Server.Port = strings.TrimSpace(cnf.Server.Port)
	cnf.DataSource.Dns = strings.TrimSpace(cnf.DataSource.Dns)
	cnf.Redis.Dns = strings.TrimSpace(cnf.Redis.Dns)

	if cnf.Server.Port == "" {
		cnf.Server.Port = DEFAULT_PORT
		log.Printf("Warning: Port not specified in config. Setting default port: %s", DEFAULT_PORT)
	}

	if cnf.Queue.WebhookQueue == "" {
		cnf.Queue.WebhookQueue = DEFAULT_WEBHOOK_QUEUE
	}
	if cnf.Queue.ExpiryQueue == "" {
		cnf.Queue.ExpiryQueue = DEFAULT_EXPIRY_QUEUE
	}
	if cnf.Queue.PendingOperationTTL <= 0 {
		// abandoned pending operations are swept after three days
		cnf.Queue.PendingOperationTTL = 72
	}
	if cnf.Queue.MaxRetryAttempts <= 0 {
		cnf.Queue.MaxRetryAttempts = 5
	}
	if cnf.Ledger.MaxConflictRetries <= 0 {
		cnf.Ledger.MaxConflictRetries = 3
	}

	if len(cnf.Currencies) == 0 {
		cnf.Currencies = []string{"USD", "EUR", "GBP", "NGN"}
		log.Printf("Warning: Currency table not specified. Defaulting to: %v", cnf.Currencies)
	}

	// Rate limiting is disabled by default (when both RPS and Burst are nil)
	if cnf.RateLimit.RequestsPerSecond != nil && cnf.RateLimit.Burst == nil {
		defaultBurst := 2 * int(*cnf.RateLimit.RequestsPerSecond)
		cnf.RateLimit.Burst = &defaultBurst
		log.Printf("Warning: Rate limit burst not specified. Setting default value: %d", defaultBurst)
	}
	if cnf.RateLimit.RequestsPerSecond == nil && cnf.RateLimit.Burst != nil {
		defaultRPS := float64(*cnf.RateLimit.Burst) / 2
		cnf.RateLimit.RequestsPerSecond = &defaultRPS
		log.Printf("Warning: Rate limit RPS not specified. Setting default value: %.2f", defaultRPS)
	}
	if cnf.RateLimit.CleanupIntervalSec == nil {
		defaultCleanup := 10800 // 3 hours in seconds
		cnf.RateLimit.CleanupIntervalSec = &defaultCleanup
	}

	return nil
}

// MockConfig sets a mock configuration for testing purposes.
func MockConfig(mockConfig *Configuration) {
	_ = mockConfig.validateAndAddDefaults()
	ConfigStore.Store(mockConfig)
}

func logger() {
	logger := logrus.New()
	log.SetOutput(logger.Writer())
}
