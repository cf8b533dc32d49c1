// Package config handles YAML configuration loading with environment variable substitution.
//
// Configuration files support ${VAR} syntax for environment variable interpolation,
// which is how secrets (database password, Redis password) reach the process.
package config
