// Package config loads seqkit configuration from YAML files, .env files and
// environment variables using Viper and godotenv.
//
// # Usage
//
//	var cfg AppConfig
//	err := config.LoadConfig("seqdemo", &cfg, config.WithConfigFile("./config.yml"))
//
// Environment variables override file values. With the default prefix,
// SEQKIT_ENGINE_WORKERS=8 sets engine.workers.
package config
