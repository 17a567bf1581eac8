// Package config handles loading and validating sqlbridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SQLBRIDGE_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens, the JWT secret) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//   - Without a JWT secret the HTTP and WebSocket bridges accept anyone who
//     can reach them; keep api.host on loopback in that case
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Storage.Dir)
package config
