// Package config provides loading and environment overlay for feedgen
// configuration. It exposes a Default() baseline including the production
// feed set, and helpers locating the on-disk stores.
//
// Example:
//
//	cfg, err := config.Load("/etc/feedgen.yaml")
//	if err != nil {
//	    return err
//	}
//	config.FromEnv(&cfg)
//	if err := cfg.Validate(); err != nil {
//	    return err
//	}
//	rt, _ := runtime.Open(runtime.Options{Config: cfg})
//	defer rt.Close(ctx)
package config
