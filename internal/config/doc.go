// Package config manages TypeDock configuration via Viper, layering the
// ~/.typedock/config.yaml file, TYPEDOCK_* environment variables, and
// branded defaults.
package config
