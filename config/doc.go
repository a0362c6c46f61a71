// Package config loads service configuration with Viper.
//
// Values come from a config.yml, then a .env file, then the process
// environment. Environment keys map onto nested config keys by splitting on
// underscores, so DELIVERY_BUFFER_SIZE overrides delivery.buffer_size.
//
//	var cfg AppConfig
//	if err := config.Load("streamserve", &cfg); err != nil {
//	    return err
//	}
//
// Load applies defaults and validates after unmarshalling.
package config
