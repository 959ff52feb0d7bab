// Package env loads variables from .env files and the process environment.
//
// .env parsing is delegated to godotenv. Values already present in the
// process environment always win over values read from a file.
package env
