// Package config loads and validates estategate configuration.
//
// Configuration is read from config.yaml inside a configuration directory.
// The default directory is ~/.config/estategate; commands accept
// --config-path to point elsewhere. Defaults are applied first, so a missing
// file or a partial file is valid:
//
//	server:
//	  port: 8080
//	  publicUrl: https://gateway.example.com
//	session:
//	  store: redis
//	  redis:
//	    addr: redis:6379
//	oauth:
//	  defaultRegistration: keycloak
//	  registrations:
//	    - id: keycloak
//	      clientId: estate-web
//	      clientSecret: s3cret
//	      authUrl: https://idp.example.com/auth
//	      tokenUrl: https://idp.example.com/token
//	      scopes: [openid, profile]
//	routes:
//	  - prefix: /api/properties/
//	    upstream: http://properties:8081
//
// Validate aggregates every problem into ValidationErrors. Watcher reloads
// the file when it changes and passes the new configuration to a callback.
package config
