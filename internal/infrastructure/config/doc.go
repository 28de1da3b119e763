// Package config handles loading and validating changeling-watch configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables
//   - Validation of required fields
//   - Default value handling
//
// The defaults reproduce the watcher's zero-configuration behaviour (broker on
// localhost:1883, no credentials, "changeling-status" at QoS 0), so a missing
// file is not an error when loaded through LoadOrDefault.
//
// Security Considerations:
//   - Broker passwords and InfluxDB tokens should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, found, err := config.LoadOrDefault("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.MQTT.BrokerAddress(), found)
package config
