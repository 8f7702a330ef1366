// Package config handles configuration loading for the shop chat client.
//
// # Overview
//
// Configuration is loaded from YAML files with environment variable
// expansion. The package provides validation and sensible defaults.
//
// # Environment Variable Expansion
//
// Configuration values can reference environment variables:
//
//	server:
//	  shop_id: "${SHOP_ID}"
//
// Unset variables expand to the empty string.
//
// # Durations
//
// The auth polling bounds accept Go duration strings:
//
//	auth:
//	  poll_interval: "10s"
//	  poll_initial_delay: "2s"
package config
