package main

import (
	"context"
	"flag"
	"os"

	"github.com/justsurfingit/ats-backend/internal/auth"
	"github.com/justsurfingit/ats-backend/internal/config"
	log "github.com/sirupsen/logrus"
)

// gmailauth runs the one-time OAuth consent for the inbox watcher and saves the token.
func main() {
	cfg := config.LoadGmail()
	credentials := flag.String("credentials", cfg.CredentialsFile, "OAuth client secret file")
	token := flag.String("token", cfg.TokenFile, "where to write the token")
	flag.Parse()

	if err := auth.AuthorizeInteractive(context.Background(), *credentials, *token, os.Stdin, os.Stdout); err != nil {
		log.WithError(err).Fatal("gmail authorization failed")
	}
	log.WithField("token_file", *token).Info("gmail token saved")
}
