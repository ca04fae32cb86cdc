// Package config provides configuration types, YAML loading with
// environment substitution, and file watching for the authorization
// core.
package config
