package config

import (
	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig
	Mongo  MongoConfig
	Auth   AuthConfig
	Minio  MinioConfig
	SMTP   SMTPConfig
}

type ServerConfig struct {
	Port    string
	BaseURL string
}

type MongoConfig struct {
	URI      string
	Database string
}

type AuthConfig struct {
	JWTSecret  string
	SessionKey string
}

type MinioConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

type SMTPConfig struct {
	Host string
	Port int
	User string
	Pass string
	From string
}

// Load reads configuration from the environment with sensible local defaults.
func Load() *Config {
	viper.SetDefault("PORT", "8080")
	viper.SetDefault("BASE_URL", "http://localhost:8080")
	viper.SetDefault("MONGO_URI", "mongodb://localhost:27017/storefront")
	viper.SetDefault("MONGO_DB", "storefront")
	viper.SetDefault("JWT_SECRET", "dev-secret")
	viper.SetDefault("SESSION_KEY", "storefront_session")
	viper.SetDefault("MINIO_ENDPOINT", "localhost:9000")
	viper.SetDefault("MINIO_ACCESS_KEY", "minioadmin")
	viper.SetDefault("MINIO_SECRET_KEY", "minioadmin")
	viper.SetDefault("MINIO_BUCKET", "store-photos")
	viper.SetDefault("MINIO_USE_SSL", false)
	viper.SetDefault("SMTP_HOST", "")
	viper.SetDefault("SMTP_PORT", 587)
	viper.SetDefault("SMTP_USER", "")
	viper.SetDefault("SMTP_PASS", "")
	viper.SetDefault("MAIL_FROM", "noreply@storefront.local")
	viper.AutomaticEnv()

	return &Config{
		Server: ServerConfig{
			Port:    viper.GetString("PORT"),
			BaseURL: viper.GetString("BASE_URL"),
		},
		Mongo: MongoConfig{
			URI:      viper.GetString("MONGO_URI"),
			Database: viper.GetString("MONGO_DB"),
		},
		Auth: AuthConfig{
			JWTSecret:  viper.GetString("JWT_SECRET"),
			SessionKey: viper.GetString("SESSION_KEY"),
		},
		Minio: MinioConfig{
			Endpoint:  viper.GetString("MINIO_ENDPOINT"),
			AccessKey: viper.GetString("MINIO_ACCESS_KEY"),
			SecretKey: viper.GetString("MINIO_SECRET_KEY"),
			Bucket:    viper.GetString("MINIO_BUCKET"),
			UseSSL:    viper.GetBool("MINIO_USE_SSL"),
		},
		SMTP: SMTPConfig{
			Host: viper.GetString("SMTP_HOST"),
			Port: viper.GetInt("SMTP_PORT"),
			User: viper.GetString("SMTP_USER"),
			Pass: viper.GetString("SMTP_PASS"),
			From: viper.GetString("MAIL_FROM"),
		},
	}
}
