// Package db embeds the database schema so tooling and the integration-test
// harness can apply it without a checkout-relative file path.
package db

import _ "embed"

//go:embed schema.sql
var Schema string
