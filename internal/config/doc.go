// Package config loads the sensor console configuration.
//
// Defaults are overlaid by config/default.yaml, then by the file named in
// SANTACAM_CONFIG, then by SANTACAM_* environment variables, and the result
// is validated before use.
package config
