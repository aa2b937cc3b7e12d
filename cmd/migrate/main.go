// Command migrate applies the SQL migrations under migrations/ against
// the database named by DATABASE_URL.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/corrigolabs/corrigo-backend/internal/config"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var dir string
	flag.StringVar(&dir, "path", "migrations", "directory containing migration files")
	flag.Parse()

	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set")
	}

	m, err := migrate.New("file://"+dir, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("open migrations: %v", err)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	switch args[0] {
	case "up":
		report(m.Up(), "all pending migrations applied")
	case "down":
		report(m.Down(), "all migrations rolled back")
	case "steps":
		n := mustInt(args, "steps <n>")
		report(m.Steps(n), fmt.Sprintf("moved %d step(s)", n))
	case "force":
		v := mustInt(args, "force <version>")
		report(m.Force(v), fmt.Sprintf("schema version forced to %d", v))
	case "version":
		v, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("read version: %v", err)
		}
		fmt.Printf("schema version %d (dirty=%t)\n", v, dirty)
	default:
		usage()
		os.Exit(2)
	}
}

func mustInt(args []string, form string) int {
	if len(args) < 2 {
		log.Fatalf("usage: migrate %s", form)
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		log.Fatalf("not a number: %q", args[1])
	}
	return n
}

func report(err error, ok string) {
	if err != nil && !errors.Is(err, migrate.ErrNoChange) {
		log.Fatalf("migration failed: %v", err)
	}
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("nothing to do")
		return
	}
	fmt.Println(ok)
}

func usage() {
	fmt.Println("usage: migrate [-path dir] <up|down|steps <n>|version|force <version>>")
	flag.PrintDefaults()
}
