package postgres

import "embed"

// Migrations holds the schema, applied at startup through
// pkg/postgres.RunEmbeddedMigrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS

// MigrationsDir is the directory inside Migrations holding the files.
const MigrationsDir = "migrations"
