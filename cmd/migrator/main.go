package main

import (
	"errors"
	"flag"
	"log"

	"github.com/FurmanovVitaliy/extension-auth/pkg/clients/postgre"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" // PgSQL driver
	_ "github.com/golang-migrate/migrate/v4/source/file"       // file source driver
)

func main() {
	var migrationsPath, migrationsTable, dbHost, dbPort, dbUser, dbPassword, dbName string
	var down bool

	flag.StringVar(&migrationsTable, "migrations-table", "migrations", "name of the migrations table")
	flag.StringVar(&dbHost, "db-host", "localhost", "database host")
	flag.StringVar(&dbPort, "db-port", "5432", "database port")
	flag.StringVar(&dbUser, "db-user", "postgres", "database user")
	flag.StringVar(&dbPassword, "db-password", "", "database password")
	flag.StringVar(&dbName, "db-name", "extension_auth", "database name")
	flag.StringVar(&migrationsPath, "migrations-path", "./migrations", "path to migrations")
	flag.BoolVar(&down, "down", false, "roll back every migration")

	flag.Parse()

	if migrationsPath == "" {
		log.Fatal("migrations path is required")
	}

	dbURL := postgre.DSN(dbHost, dbPort, dbUser, dbPassword, dbName) + "&x-migrations-table=" + migrationsTable

	m, err := migrate.New(
		"file://"+migrationsPath,
		dbURL,
	)
	if err != nil {
		log.Fatalf("failed to create migrator: %v", err)
	}

	if down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			log.Println("no migrations to apply")
			return
		}
		log.Fatalf("failed to apply migrations: %v", err)
	}

	log.Println("migrations applied successfully")
}
