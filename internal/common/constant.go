// Package common contains shared constants and sentinel errors used across
// credkeeper components.
package common

const (
	// AdminTokenEnvName is the environment variable the CLI reads the admin
	// session token from when -token is not given.
	AdminTokenEnvName = "CREDKEEPER_ADMIN_TOKEN"

	// DefaultUserLevel is the account level carried by reset codes when the
	// issuing admin does not choose one.
	DefaultUserLevel = "usuario"

	// AdminUserLevel marks codes that create administrator accounts.
	AdminUserLevel = "admin"
)
