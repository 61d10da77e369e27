package infra

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config — корневая структура конфигурации бэкенда.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Identity IdentityConfig `mapstructure:"identity"`
	Workflow WorkflowConfig `mapstructure:"workflow"`
	Academic AcademicConfig `mapstructure:"academic"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Logger   LoggerConfig   `mapstructure:"logger"`
}

// ServerConfig описывает настройки HTTP-сервера.
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig описывает подключение к PostgreSQL.
type DatabaseConfig struct {
	URL      string `mapstructure:"url"`
	MaxConns int32  `mapstructure:"max_conns"`
	MinConns int32  `mapstructure:"min_conns"`
}

// RedisConfig описывает подключение к Redis (Pub/Sub сигналы о резолюциях).
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// IdentityConfig — интеграция с внешним Identity-сервисом.
// Токены проверяются локально его открытым ключом RS256,
// каталог пользователей опрашивается по HTTP.
type IdentityConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	PublicKeyPath  string        `mapstructure:"public_key_path"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	RatePerSecond  float64       `mapstructure:"rate_per_second"`
	RateBurst      int           `mapstructure:"rate_burst"`
	PublicKey      []byte
}

// WorkflowConfig содержит привязку action key -> идентификатор хендлера.
// Набор валидных ключей: noop, project_group.add_member, proposal.committee,
// proposal.student.director, project.staff.assign.
type WorkflowConfig struct {
	Actions map[string]string `mapstructure:"actions"`
}

// AcademicConfig — параметры вычисления активного учебного периода.
type AcademicConfig struct {
	ActiveState string `mapstructure:"active_state"`
}

// AuditConfig настраивает асинхронный журнал событий workflow.
type AuditConfig struct {
	BufferSize    int           `mapstructure:"buffer_size"`
	FlushInterval time.Duration `mapstructure:"flush_interval"`
}

// LoggerConfig настраивает поведение zap логгера.
type LoggerConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Format string `mapstructure:"format"` // json, console
}

// LoadConfig инициализирует конфигурацию, объединяя значения из файла и ENV.
func LoadConfig() (*Config, error) {
	v := viper.New()

	// 1. Настройка поиска файла
	v.SetConfigName("config")    // имя файла без расширения
	v.SetConfigType("yaml")      // формат
	v.AddConfigPath(".")         // ищем в корне
	v.AddConfigPath("./configs") // и в папке с конфигами

	// 2. Настройка переменных окружения (ENV)
	// Позволяет перекрывать конфиг: SERVER_PORT=9000 перекроет server.port
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 3. Установка дефолтных значений
	setDefaults(v)

	// 4. Чтение файла
	if err := v.ReadInConfig(); err != nil {
		var configFileNotFoundError viper.ConfigFileNotFoundError
		if !errors.As(err, &configFileNotFoundError) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Если файла нет — работаем на ENV и дефолтах
	}

	// 5. Маппинг в структуру
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	// 6. Загрузка ключа Identity из файла ИЛИ из ENV
	// Для Docker/K8s сам PEM-ключ может лежать прямо в переменной окружения
	cfg.Identity.PublicKey = loadKeyResource(cfg.Identity.PublicKeyPath, "IDENTITY_PUBLIC_KEY_DATA")

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 5*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("database.max_conns", 15)
	v.SetDefault("database.min_conns", 5)
	v.SetDefault("identity.request_timeout", 3*time.Second)
	v.SetDefault("identity.rate_per_second", 50)
	v.SetDefault("identity.rate_burst", 10)
	v.SetDefault("academic.active_state", "active")
	v.SetDefault("audit.buffer_size", 1000)
	v.SetDefault("audit.flush_interval", 1*time.Second)
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")

	// Дефолтная привязка хендлеров: полный набор ключей платформы
	v.SetDefault("workflow.actions", map[string]string{
		"noop":                      "noop",
		"project_group.add_member":  "group_member",
		"proposal.committee":        "proposal_create",
		"proposal.student.director": "proposal_forward",
		"project.staff.assign":      "staff_assign",
	})
}

// loadKeyResource — универсальный хелпер для подтягивания PEM-данных
func loadKeyResource(path string, envDataKey string) []byte {
	// Если ключ прилетел напрямую в ENV (Base64 или PEM)
	if data := os.Getenv(envDataKey); data != "" {
		return []byte(data)
	}
	// Иначе читаем файл по пути из конфига
	if path != "" {
		data, err := os.ReadFile(path)
		if err == nil {
			return data
		}
	}
	return nil
}
