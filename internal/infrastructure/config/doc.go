// Package config handles loading and validating homesec configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with HOMESEC_* environment variables
//   - Validation of required fields and timing constants
//   - Default value handling
//
// The doorway counter timing (sampling cadence, confirmation window, settle
// delay, heartbeat, blink interval) lives here rather than in code so it can
// be tuned per installation without a rebuild.
//
// Sensitive values (broker password, InfluxDB token) should be set via
// environment variables rather than committed to the YAML file.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.Occupancy.ConfirmWindow)
package config
