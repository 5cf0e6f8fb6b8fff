package config

const (
	NotifierNoop  = "noop"
	NotifierRedis = "redis"
	NotifierSMTP  = "smtp"
)

type NotificationConfig struct {
	Driver string      `yaml:"driver" validate:"oneof=noop redis smtp"`
	Redis  RedisConfig `yaml:"redis"`
	SMTP   SMTPConfig  `yaml:"smtp"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Channel  string `yaml:"channel"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}
