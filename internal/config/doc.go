// Package config provides loading and environment overlay for killfeed
// configuration. It exposes a Default() baseline, Load for JSON/YAML files
// with KILLFEED_* environment overrides, and FromEnv for the short-form
// operator variables.
//
// Example:
//
//	cfg, err := config.Load("/etc/killfeed.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close()
package config
