// Command loginguardctl is the admin companion to the login service:
// account provisioning and the manual unsuspend that has no self-service
// path.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"loginguard/internal/config"
	"loginguard/pkg/auth"
	"loginguard/pkg/domain"
	"loginguard/pkg/repository"
)

func usage() {
	fmt.Fprintln(os.Stderr, `usage: loginguardctl <command> <email> [args]

commands:
  create-user <email> <password>   create an account
  set-password <email> <password>  replace an account's password
  unsuspend <email>                lift a suspension and clear the attempt flag
  revoke <email>                   revoke all sessions and tokens for an account`)
	os.Exit(2)
}

func main() {
	_ = godotenv.Load()

	if len(os.Args) < 3 {
		usage()
	}
	command, email := os.Args[1], os.Args[2]

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}

	db, err := repository.NewDB(repository.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		DBName:   cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	})
	if err != nil {
		fatal(err)
	}
	defer db.Close()

	users := repository.NewUsersRepository(db)
	ctx := context.Background()

	switch command {
	case "create-user":
		if len(os.Args) != 4 {
			usage()
		}
		hash, err := auth.HashPassword(os.Args[3])
		if err != nil {
			fatal(err)
		}
		now := time.Now()
		err = users.Create(ctx, &domain.User{
			ID:           uuid.New(),
			Email:        email,
			PasswordHash: hash,
			CreatedAt:    now,
			UpdatedAt:    now,
		})
		if err != nil {
			fatal(err)
		}
		fmt.Printf("user %s created\n", email)

	case "set-password":
		if len(os.Args) != 4 {
			usage()
		}
		hash, err := auth.HashPassword(os.Args[3])
		if err != nil {
			fatal(err)
		}
		if err := users.UpdatePasswordHash(ctx, email, hash); err != nil {
			fatal(err)
		}
		fmt.Printf("password updated for %s\n", email)

	case "unsuspend":
		if err := users.Unsuspend(ctx, email); err != nil {
			fatal(err)
		}
		fmt.Printf("user %s unsuspended\n", email)

	case "revoke":
		user, err := users.GetByEmail(ctx, email)
		if err != nil {
			fatal(err)
		}
		sessions := repository.NewSessionsRepository(db)
		tokens := repository.NewTokensRepository(db)
		if err := sessions.RevokeAllByUserID(ctx, user.ID); err != nil {
			fatal(err)
		}
		if err := tokens.RevokeAllByUserID(ctx, user.ID); err != nil {
			fatal(err)
		}
		fmt.Printf("all sessions and tokens revoked for %s\n", email)

	default:
		usage()
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, "error:", err)
	os.Exit(1)
}
