// Command admin creates user accounts directly in the database, bypassing
// the service API. Meant for seeding the first operator account.
package main

import (
	"bytes"
	"context"
	"database/sql"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/dmitrijs2005/authkeeper/internal/cryptox"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
	"github.com/dmitrijs2005/authkeeper/internal/server/repositories/users"
	_ "github.com/jackc/pgx/v5/stdlib"
	"golang.org/x/term"
)

func main() {

	dsn := flag.String("d", os.Getenv("DATABASE_DSN"), "database dsn")
	email := flag.String("email", "", "email of the account to create")
	name := flag.String("name", "", "display name of the account")
	flag.Parse()

	if *dsn == "" || *email == "" {
		flag.Usage()
		os.Exit(2)
	}

	fmt.Println("Enter password")
	password, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatalf("error reading password: %v", err)
	}
	fmt.Println("Repeat password")
	confirm, err := term.ReadPassword(int(os.Stdin.Fd()))
	if err != nil {
		log.Fatalf("error reading password: %v", err)
	}
	if !bytes.Equal(password, confirm) {
		log.Fatal("passwords do not match")
	}
	if len(password) == 0 {
		log.Fatal("password must not be empty")
	}

	hash, err := cryptox.HashPassword(string(password))
	if err != nil {
		log.Fatalf("error hashing password: %v", err)
	}

	db, err := sql.Open("pgx", *dsn)
	if err != nil {
		log.Fatalf("db init error: %v", err)
	}
	defer db.Close()

	repo := users.NewPostgresRepository(db)
	user, err := repo.Create(context.Background(), &models.User{
		Email:        *email,
		Name:         *name,
		PasswordHash: hash,
	})
	if err != nil {
		log.Fatalf("error creating user: %v", err)
	}

	fmt.Printf("created user %s (%s)\n", user.ID, user.Email)
}
