package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/calauth/internal/authctl"
	"github.com/dmitrijs2005/calauth/internal/flagx"
	"github.com/dmitrijs2005/calauth/internal/logging"
	"github.com/dmitrijs2005/calauth/internal/server/config"
	"github.com/dmitrijs2005/calauth/internal/server/credentials"
	"github.com/dmitrijs2005/calauth/internal/server/repositories/repomanager"
	"github.com/dmitrijs2005/calauth/internal/server/services"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewJSON(os.Stderr, cfg.LogLevel)

	db, err := repomanager.OpenPostgres(ctx, cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer db.Close()

	m := repomanager.NewPostgresRepositoryManager()
	dir := services.NewDirectory(db, m, credentials.NewDefaultHasher(), logger)

	app := authctl.NewApp(db, m, dir, os.Stdin, os.Stdout)
	if err := app.Run(ctx, flagx.StripArgs(os.Args[1:], config.FlagNames())); err != nil {
		db.Close()
		log.Fatalf("%v", err)
	}

}
