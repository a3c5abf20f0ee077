package core

import (
	"time"
)

type Config struct {
	Spotify   SpotifyConfig
	Queue     QueueConfig
	Analytics AnalyticsConfig
	Server    ServerConfig
	Log       LogConfig
}

type SpotifyConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	TokenPath    string
}

type QueueConfig struct {
	SearchLimit          int
	AcceptedRecLimit     int
	RejectedRecLimit     int
	SubmissionsPerMinute int
}

type AnalyticsConfig struct {
	Path string
}

type ServerConfig struct {
	Host         string
	Port         int
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type LogConfig struct {
	Level  string
	Format string
}

func DefaultConfig() *Config {
	return &Config{
		Spotify: SpotifyConfig{
			RedirectURL: "http://localhost:8080/callback",
			TokenPath:   "./spotify_token.json",
		},
		Queue: QueueConfig{
			SearchLimit:          1,
			AcceptedRecLimit:     3,
			RejectedRecLimit:     2,
			SubmissionsPerMinute: 5,
		},
		Analytics: AnalyticsConfig{
			Path: "./queue_analytics.json",
		},
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
