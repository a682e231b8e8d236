// Package config provides configuration management for the courier.
//
// Settings are layered, later layers winning:
//
//  1. Built-in defaults (DefaultSettings)
//  2. An optional config file (yaml, json, toml...)
//  3. A .env file in the working directory, if present
//  4. The process environment: COURIER_<KEY>, e.g. COURIER_MAX_ATTEMPTS
//
// A few settings also answer to the names used by earlier deployments:
// MAX_RETRIES, FORMAT, SEND_ALBUM_COVER and COPY_FILES_PATH.
//
// # Loading
//
//	settings, err := config.Load("courier.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	policy := settings.RetryPolicy() // BaseDelay 1s, MaxAttempts 5
package config
