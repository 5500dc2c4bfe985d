package database

import "embed"

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql migrations/seed/*.sql
var embedded embed.FS
