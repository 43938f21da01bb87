package database

import _ "embed"

// Schema holds the table definitions applied at boot and by integration
// tests against a fresh container.
//
//go:embed schema.sql
var Schema string
