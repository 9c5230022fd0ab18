package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/justsurfingit/ats-backend/internal/config"
	"github.com/justsurfingit/ats-backend/internal/database"
	"github.com/justsurfingit/ats-backend/internal/logging"
	log "github.com/sirupsen/logrus"
)

func main() {
	status := flag.Bool("status", false, "print applied and pending migrations and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}
	logging.Setup(cfg.LogLevel, cfg.LogFormat)

	db, err := database.Connect(cfg)
	if err != nil {
		log.WithError(err).Fatal("database connection failed")
	}
	defer database.Close(db)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if !*status {
		if err := database.Migrate(ctx, db); err != nil {
			log.WithError(err).Fatal("migrations failed")
		}
	}

	states, err := database.MigrationStatus(ctx, db)
	if err != nil {
		log.WithError(err).Fatal("read migration status")
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tNAME\tAPPLIED")
	for _, s := range states {
		applied := "pending"
		if s.AppliedAt != nil {
			applied = s.AppliedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%d\t%s\t%s\n", s.Version, s.Name, applied)
	}
	w.Flush()
}
