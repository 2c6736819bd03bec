package config

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Server   Server
	Database Database
	Redis    Redis
	Session  Session
}

type Server struct {
	Port string
}

type Database struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
}

type Redis struct {
	Host string
	Port string
}

// Session holds the policy knobs for test session liveness and resumption.
type Session struct {
	InactivityTimeoutMinutes int
	ResumeWindowMinutes      int
	MaxResumeAttempts        int
}

func NewConfig() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("REDIS_HOST", "localhost")
	viper.SetDefault("REDIS_PORT", "6379")
	viper.SetDefault("SESSION_INACTIVITY_TIMEOUT_MINUTES", 30)
	viper.SetDefault("SESSION_RESUME_WINDOW_MINUTES", 15)
	viper.SetDefault("SESSION_MAX_RESUME_ATTEMPTS", 3)

	if err := viper.ReadInConfig(); err != nil {
		log.Warn().Err(err).Msg("Error reading config file")
	}

	var config Config

	config.Server.Port = viper.GetString("SERVER_PORT")
	config.Database.Host = viper.GetString("DATABASE_HOST")
	config.Database.Port = viper.GetString("DATABASE_PORT")
	config.Database.User = viper.GetString("DATABASE_USER")
	config.Database.Password = viper.GetString("DATABASE_PASSWORD")
	config.Database.Name = viper.GetString("DATABASE_NAME")

	config.Redis.Host = viper.GetString("REDIS_HOST")
	config.Redis.Port = viper.GetString("REDIS_PORT")

	config.Session.InactivityTimeoutMinutes = viper.GetInt("SESSION_INACTIVITY_TIMEOUT_MINUTES")
	config.Session.ResumeWindowMinutes = viper.GetInt("SESSION_RESUME_WINDOW_MINUTES")
	config.Session.MaxResumeAttempts = viper.GetInt("SESSION_MAX_RESUME_ATTEMPTS")

	log.Info().Interface("config", config).Msg("Config loaded")
	return &config, nil
}
