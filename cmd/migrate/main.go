package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/tradeledger-backend/pkg/config"
	"github.com/angelmondragon/tradeledger-backend/pkg/db"
	"github.com/angelmondragon/tradeledger-backend/pkg/logger"
	"github.com/angelmondragon/tradeledger-backend/pkg/migrate"
)

const usage = "up|down|pending|to|create|validate"

func main() {
	cmd := flag.String("cmd", "up", "migration command: "+usage)
	dir := flag.String("dir", migrate.DefaultDir, "goose migrations directory")
	name := flag.String("name", "", "migration name for -cmd=create")
	version := flag.String("version", "", "target YYYYMMDDHHMMSS for -cmd=to")
	flag.Parse()

	_ = godotenv.Load()
	logg := logger.New(logger.Options{ServiceName: "migrate"})
	ctx := logg.WithFields(context.Background(), map[string]any{"cmd": *cmd, "dir": *dir})

	// offline commands need neither config nor a database
	switch *cmd {
	case "create":
		if *name == "" {
			exit(ctx, logg, "missing -name", nil)
		}
		path, err := migrate.CreateSQLMigration(*dir, *name)
		if err != nil {
			exit(ctx, logg, "create migration failed", err)
		}
		fmt.Println("created", path)
		return
	case "validate":
		if err := migrate.ValidateDir(*dir); err != nil {
			exit(ctx, logg, "migration validation failed", err)
		}
		fmt.Println("migrations valid")
		return
	}

	cfg, err := config.Load()
	if err != nil {
		exit(ctx, logg, "failed to load config", err)
	}
	logg = logger.New(logger.Options{
		ServiceName: "migrate",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "cmd": *cmd, "dir": *dir})

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		exit(ctx, logg, "failed to connect to database", err)
	}
	defer dbClient.Close()
	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		exit(ctx, logg, "failed to extract sql.DB", err)
	}
	runner, err := migrate.NewRunner(sqlDB, *dir)
	if err != nil {
		exit(ctx, logg, "failed to build migration runner", err)
	}

	var done []migrate.Applied
	switch *cmd {
	case "up":
		done, err = runner.Up(ctx)
	case "down":
		done, err = runner.Down(ctx)
	case "to":
		if *version == "" {
			exit(ctx, logg, "missing -version", nil)
		}
		done, err = runner.To(ctx, *version)
	case "pending":
		pending, perr := runner.Pending(ctx)
		if perr != nil {
			exit(ctx, logg, "status failed", perr)
		}
		for _, v := range pending {
			fmt.Println("pending", v)
		}
		return
	default:
		exit(ctx, logg, "unknown -cmd, expected "+usage, nil)
	}

	for _, a := range done {
		fmt.Printf("%s %d %s (%dms)\n", a.Direction, a.Version, a.Path, a.Millis)
	}
	if err != nil {
		exit(ctx, logg, "migration failed", err)
	}
	logg.Info(logg.WithField(ctx, "applied", len(done)), "migrations complete")
}

func exit(ctx context.Context, logg *logger.Logger, msg string, err error) {
	if err == nil {
		err = fmt.Errorf("%s", msg)
	}
	logg.Error(ctx, msg, err)
	os.Exit(1)
}
