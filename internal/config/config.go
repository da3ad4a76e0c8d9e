// v2
// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"nrgchamp/ventilation/internal/bands"
)

// AppConfig holds every runtime setting of the ventilation service. Values are layered:
// defaults, then the optional env file, then the process environment, then flags. Band
// tables and fixed limits come from the properties file.
type AppConfig struct {
	HTTPBind        string
	LogDir          string
	LogLevel        string
	EnvFile         string
	PropertiesPath  string
	ShutdownTimeout time.Duration

	Source string
	Sinks  []string

	MQTTBroker           string
	MQTTClientID         string
	MQTTQoS              byte
	MQTTReadingsTopic    string
	MQTTVentilationTopic string
	MQTTStatusTopic      string
	MQTTAlertTopic       string

	KafkaBrokers          []string
	KafkaGroupID          string
	KafkaReadingsTopic    string
	KafkaVentilationTopic string
	KafkaStatusTopic      string
	KafkaAlertTopic       string
	TopicPartitions       int
	TopicReplication      int

	AMQPURL      string
	AMQPExchange string

	StoreBackend      string
	SQLitePath        string
	PostgresDSN       string
	MongoURI          string
	MongoDatabase     string
	DynamoTablePrefix string
	AWSRegion         string

	CacheBackend  string
	CacheTTL      time.Duration
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string

	IngestRate  float64
	IngestBurst int

	Thresholds bands.Thresholds
}

func defaults() *AppConfig {
	return &AppConfig{
		HTTPBind:        ":8080",
		LogDir:          "./logs",
		LogLevel:        "info",
		EnvFile:         ".env",
		PropertiesPath:  "./configs/ventilation.properties",
		ShutdownTimeout: 10 * time.Second,

		Source: "mqtt",
		Sinks:  []string{"mqtt"},

		MQTTBroker:           "tcp://broker.hivemq.com:1883",
		MQTTClientID:         "ventilation-" + uuid.NewString()[:8],
		MQTTQoS:              1,
		MQTTReadingsTopic:    "factory/floor/sensors",
		MQTTVentilationTopic: "factory/floor/ventilation",
		MQTTStatusTopic:      "factory/unity/status",
		MQTTAlertTopic:       "factory/unity/alert",

		KafkaGroupID:          "ventilation",
		KafkaReadingsTopic:    "factory.sensors",
		KafkaVentilationTopic: "factory.ventilation",
		KafkaStatusTopic:      "factory.status",
		KafkaAlertTopic:       "factory.alerts",
		TopicPartitions:       1,
		TopicReplication:      1,

		AMQPExchange: "factory.ventilation",

		StoreBackend:      "sqlite",
		SQLitePath:        "db/ventilation.db",
		MongoDatabase:     "ventilation",
		DynamoTablePrefix: "ventilation_",
		AWSRegion:         "eu-south-1",

		CacheBackend: "memory",
		CacheTTL:     10 * time.Minute,
		RedisAddr:    "localhost:6379",
		RedisKey:     "ventilation:latest",

		IngestRate:  20,
		IngestBurst: 40,

		Thresholds: bands.Default(),
	}
}

// LoadEnvAndFiles resolves the configuration for the process arguments args (without
// the program name).
func LoadEnvAndFiles(args []string) (*AppConfig, error) {
	c := defaults()
	c.EnvFile = getenv("ENV_FILE", c.EnvFile)
	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load env file %s: %w", c.EnvFile, err)
	}
	if err := c.applyEnv(); err != nil {
		return nil, err
	}
	if err := c.applyFlags(args); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	th, err := LoadThresholds(c.PropertiesPath)
	if err != nil {
		return nil, err
	}
	c.Thresholds = th
	return c, nil
}

// ReloadThresholds re-reads the properties file. It leaves c untouched, so concurrent
// reloads are safe; installing the result is up to the caller.
func (c *AppConfig) ReloadThresholds() (bands.Thresholds, error) {
	return LoadThresholds(c.PropertiesPath)
}

func (c *AppConfig) applyEnv() error {
	c.HTTPBind = getenv("HTTP_BIND", c.HTTPBind)
	c.LogDir = getenv("LOG_DIR", c.LogDir)
	c.LogLevel = getenv("LOG_LEVEL", c.LogLevel)
	c.PropertiesPath = getenv("PROPERTIES_PATH", c.PropertiesPath)
	c.ShutdownTimeout = getDuration("SHUTDOWN_TIMEOUT_MS", c.ShutdownTimeout)

	c.Source = strings.ToLower(getenv("SOURCE", c.Source))
	if v := split(os.Getenv("SINKS"), ","); len(v) > 0 {
		c.Sinks = v
	}

	c.MQTTBroker = getenv("MQTT_BROKER", c.MQTTBroker)
	c.MQTTClientID = getenv("MQTT_CLIENT_ID", c.MQTTClientID)
	qos := geti("MQTT_QOS", int(c.MQTTQoS))
	if qos < 0 || qos > 2 {
		return fmt.Errorf("MQTT_QOS must be 0, 1 or 2, got %d", qos)
	}
	c.MQTTQoS = byte(qos)
	c.MQTTReadingsTopic = getenv("MQTT_TOPIC", c.MQTTReadingsTopic)
	c.MQTTVentilationTopic = getenv("MQTT_VENTILATION_TOPIC", c.MQTTVentilationTopic)
	c.MQTTStatusTopic = getenv("MQTT_UNITY_TOPIC", c.MQTTStatusTopic)
	c.MQTTAlertTopic = getenv("MQTT_UNITY_ALERT_TOPIC", c.MQTTAlertTopic)

	if v := split(os.Getenv("KAFKA_BROKERS"), ","); len(v) > 0 {
		c.KafkaBrokers = v
	}
	c.KafkaGroupID = getenv("KAFKA_GROUP_ID", c.KafkaGroupID)
	c.KafkaReadingsTopic = getenv("KAFKA_READINGS_TOPIC", c.KafkaReadingsTopic)
	c.KafkaVentilationTopic = getenv("KAFKA_VENTILATION_TOPIC", c.KafkaVentilationTopic)
	c.KafkaStatusTopic = getenv("KAFKA_STATUS_TOPIC", c.KafkaStatusTopic)
	c.KafkaAlertTopic = getenv("KAFKA_ALERT_TOPIC", c.KafkaAlertTopic)
	c.TopicPartitions = geti("TOPIC_PARTITIONS", c.TopicPartitions)
	c.TopicReplication = geti("TOPIC_REPLICATION", c.TopicReplication)

	c.AMQPURL = getenv("AMQP_URL", c.AMQPURL)
	c.AMQPExchange = getenv("AMQP_EXCHANGE", c.AMQPExchange)

	c.StoreBackend = strings.ToLower(getenv("STORE_BACKEND", c.StoreBackend))
	c.SQLitePath = getenv("SQLITE_PATH", c.SQLitePath)
	c.PostgresDSN = getenv("POSTGRES_DSN", c.PostgresDSN)
	c.MongoURI = getenv("MONGO_URI", c.MongoURI)
	c.MongoDatabase = getenv("MONGO_DATABASE", c.MongoDatabase)
	c.DynamoTablePrefix = getenv("DYNAMO_TABLE_PREFIX", c.DynamoTablePrefix)
	c.AWSRegion = getenv("AWS_REGION", c.AWSRegion)

	c.CacheBackend = strings.ToLower(getenv("CACHE_BACKEND", c.CacheBackend))
	c.CacheTTL = getDuration("CACHE_TTL_MS", c.CacheTTL)
	c.RedisAddr = getenv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getenv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = geti("REDIS_DB", c.RedisDB)
	c.RedisKey = getenv("REDIS_KEY", c.RedisKey)

	c.IngestRate = getf("INGEST_RATE", c.IngestRate)
	c.IngestBurst = geti("INGEST_BURST", c.IngestBurst)
	return nil
}

func (c *AppConfig) applyFlags(args []string) error {
	fs := pflag.NewFlagSet("ventilation", pflag.ContinueOnError)
	fs.StringVar(&c.HTTPBind, "http-bind", c.HTTPBind, "HTTP listen address")
	fs.StringVar(&c.LogDir, "log-dir", c.LogDir, "directory of ventilation.log")
	fs.StringVarP(&c.PropertiesPath, "properties", "p", c.PropertiesPath, "threshold properties file")
	fs.StringVar(&c.Source, "source", c.Source, "reading source: mqtt, kafka or none")
	fs.StringSliceVar(&c.Sinks, "sinks", c.Sinks, "publish targets: mqtt, kafka, amqp")
	fs.StringVar(&c.StoreBackend, "store", c.StoreBackend, "store backend: sqlite, postgres, mongo, dynamodb, none")
	fs.StringVar(&c.CacheBackend, "cache", c.CacheBackend, "latest-state cache: memory or redis")
	fs.StringSliceVar(&c.KafkaBrokers, "kafka-brokers", c.KafkaBrokers, "Kafka bootstrap brokers")
	fs.StringVar(&c.MQTTBroker, "mqtt-broker", c.MQTTBroker, "MQTT broker URL")
	return fs.Parse(args)
}

func (c *AppConfig) validate() error {
	var errs []error
	switch c.Source {
	case "mqtt", "kafka", "none":
	default:
		errs = append(errs, fmt.Errorf("unknown source %q", c.Source))
	}
	for i, s := range c.Sinks {
		s = strings.ToLower(strings.TrimSpace(s))
		c.Sinks[i] = s
		switch s {
		case "mqtt", "kafka", "amqp":
		default:
			errs = append(errs, fmt.Errorf("unknown sink %q", s))
		}
		if s == "amqp" && c.AMQPURL == "" {
			errs = append(errs, errors.New("AMQP_URL required for the amqp sink"))
		}
	}
	if (c.Source == "kafka" || c.HasSink("kafka")) && len(c.KafkaBrokers) == 0 {
		errs = append(errs, errors.New("KAFKA_BROKERS required for kafka source or sink"))
	}
	if c.IngestRate <= 0 || c.IngestBurst <= 0 {
		errs = append(errs, fmt.Errorf("ingest rate and burst must be positive: %g/%d", c.IngestRate, c.IngestBurst))
	}
	return errors.Join(errs...)
}

// HasSink reports whether name is among the configured sinks.
func (c *AppConfig) HasSink(name string) bool {
	for _, s := range c.Sinks {
		if s == name {
			return true
		}
	}
	return false
}

func getenv(k, d string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return d
}

func geti(k string, d int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return i
		}
	}
	return d
}

func getf(k string, d float64) float64 {
	if v := os.Getenv(k); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return f
		}
	}
	return d
}

func getDuration(k string, d time.Duration) time.Duration {
	if ms := geti(k, -1); ms > 0 {
		return time.Duration(ms) * time.Millisecond
	}
	return d
}

func split(s, sep string) []string {
	if s == "" {
		return nil
	}
	p := strings.Split(s, sep)
	out := make([]string, 0, len(p))
	for _, x := range p {
		x = strings.TrimSpace(x)
		if x != "" {
			out = append(out, x)
		}
	}
	return out
}
