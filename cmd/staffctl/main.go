// Command staffctl manages staff accounts directly against the database.
//
//	staffctl create -u alice    # password read from stdin
//	staffctl passwd -u alice
//	staffctl list
package main

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/iliyamo/bike-sales-counter/internal/config"
	"github.com/iliyamo/bike-sales-counter/internal/database"
	"github.com/iliyamo/bike-sales-counter/internal/logger"
	"github.com/iliyamo/bike-sales-counter/internal/repository"
	"github.com/iliyamo/bike-sales-counter/internal/service"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: staffctl create|passwd -u <username> | staffctl list")
	os.Exit(2)
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	cmd := os.Args[1]
	fs := flag.NewFlagSet(cmd, flag.ExitOnError)
	username := fs.String("u", "", "staff username")
	_ = fs.Parse(os.Args[2:])

	cfg, err := config.Load()
	log := logger.New(cfg.Env)
	defer func() { _ = log.Sync() }()
	if err != nil {
		log.Fatal("config", zap.Error(err))
	}
	db, err := database.Open(cfg.DB)
	if err != nil {
		log.Fatal("database", zap.Error(err))
	}
	defer db.Close()
	if cfg.DB.Migrate {
		if err := database.Migrate(db, log); err != nil {
			log.Fatal("migrate", zap.Error(err))
		}
	}

	accounts := service.NewAccounts(repository.NewStaffRepo(db), repository.NewTokenRepo(db),
		cfg.JWTSecret, cfg.AccessTTLMin, cfg.RefreshTTLDays, log)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch cmd {
	case "create", "passwd":
		if *username == "" {
			usage()
		}
		pw, err := readPassword(os.Stdin)
		if err != nil {
			log.Fatal("read password", zap.Error(err))
		}
		if cmd == "create" {
			id, err := accounts.CreateStaff(ctx, *username, pw)
			if err != nil {
				log.Fatal("create staff", zap.Error(err))
			}
			fmt.Printf("created staff %d\n", id)
			return
		}
		if err := accounts.SetPassword(ctx, *username, pw); err != nil {
			log.Fatal("set password", zap.Error(err))
		}
		fmt.Println("password updated, sessions revoked")
	case "list":
		all, err := accounts.ListStaff(ctx)
		if err != nil {
			log.Fatal("list staff", zap.Error(err))
		}
		for _, st := range all {
			fmt.Printf("%d\t%s\n", st.ID, st.Username)
		}
	default:
		usage()
	}
}

// readPassword reads the first line of r without its line ending.
func readPassword(r io.Reader) ([]byte, error) {
	line, err := bufio.NewReader(r).ReadBytes('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return nil, err
	}
	return bytes.TrimRight(line, "\r\n"), nil
}
