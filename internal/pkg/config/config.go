// internal/pkg/config/config.go
package config

import (
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config 汇总了所有服务共享的基础设施配置。
// 先读 yaml 文件（CHOMP_CONFIG_FILE），再用环境变量覆盖，
// 默认值保证本地单机可以直接跑起来。
type Config struct {
	Kafka struct {
		Brokers     []string `yaml:"brokers" envconfig:"KAFKA_BROKERS"`
		MaxAttempts int      `yaml:"maxAttempts" envconfig:"KAFKA_MAX_ATTEMPTS"`
	} `yaml:"kafka"`

	MySQL struct {
		DSN string `yaml:"dsn" envconfig:"MYSQL_DSN"`
	} `yaml:"mysql"`

	Redis struct {
		Addr string `yaml:"addr" envconfig:"REDIS_ADDR"`
	} `yaml:"redis"`

	Jaeger struct {
		Endpoint string `yaml:"endpoint" envconfig:"JAEGER_ENDPOINT"`
	} `yaml:"jaeger"`

	Zookeeper struct {
		Servers []string `yaml:"servers" envconfig:"ZK_SERVERS"`
	} `yaml:"zookeeper"`

	Order struct {
		// 确认后等待支付结果的时间窗口，超过后对账任务会取消订单
		PaymentDeadline time.Duration `yaml:"paymentDeadline" envconfig:"ORDER_PAYMENT_DEADLINE"`
		// 对账任务的 cron 表达式
		SweepSpec string `yaml:"sweepSpec" envconfig:"ORDER_SWEEP_SPEC"`
	} `yaml:"order"`

	Payment struct {
		// WalletBalance 策略给新钱包的初始余额（分）
		WalletInitialCents int64 `yaml:"walletInitialCents" envconfig:"PAYMENT_WALLET_INITIAL_CENTS"`
		// ExternalWallet 策略的单笔上限（分）
		ExternalWalletCapCents int64 `yaml:"externalWalletCapCents" envconfig:"PAYMENT_EXTERNAL_WALLET_CAP_CENTS"`
	} `yaml:"payment"`
}

// Load 返回带默认值、文件值、环境变量三层合并后的配置。
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CHOMP_CONFIG_FILE"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "read config file %s", path)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, errors.Wrapf(err, "parse config file %s", path)
		}
	}

	if err := envconfig.Process("CHOMP", cfg); err != nil {
		return nil, errors.Wrap(err, "process env overrides")
	}
	return cfg, nil
}

func defaults() *Config {
	cfg := &Config{}
	cfg.Kafka.Brokers = []string{"localhost:9092"}
	cfg.Kafka.MaxAttempts = 3
	cfg.MySQL.DSN = "root:root@tcp(localhost:3306)/chomp?charset=utf8mb4&parseTime=True&loc=UTC"
	cfg.Redis.Addr = "localhost:6379"
	cfg.Jaeger.Endpoint = "http://localhost:14268/api/traces"
	cfg.Zookeeper.Servers = []string{"localhost:2181"}
	cfg.Order.PaymentDeadline = 15 * time.Minute
	cfg.Order.SweepSpec = "0 * * * * *"
	cfg.Payment.WalletInitialCents = 50000
	cfg.Payment.ExternalWalletCapCents = 100000
	return cfg
}
