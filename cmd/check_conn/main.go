// Dev utility: ensures a demo user with a sqlite connection exists in the
// platform store, so the query endpoints can be exercised without a remote
// database.
package main

import (
	"context"
	"fmt"
	"log"

	"tenantql/internal/config"
	"tenantql/internal/core"
	"tenantql/internal/data"
	"tenantql/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()
	db, err := data.InitDB(ctx, cfg.PlatformDBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer db.Close()

	userRepo := data.NewUserRepo(db)
	connRepo := data.NewConnectionRepo(db)

	vault, err := service.NewVault(cfg.MasterKey)
	if err != nil {
		log.Fatal(err)
	}
	registry := service.NewConnectionRegistry(connRepo, vault)
	authSvc := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.AccessTokenTTL)

	user, err := userRepo.GetByEmail(ctx, "demo@example.com")
	if err != nil {
		fmt.Println("Demo user not found. Creating...")
		user, err = authSvc.Register(ctx, service.RegisterInput{Email: "demo@example.com", Password: "demo-password"})
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("Created demo user with ID: %s\n", user.ID)
	} else {
		fmt.Printf("Demo user exists with ID: %s\n", user.ID)
	}

	conns, err := registry.ListForUser(ctx, user.ID)
	if err != nil {
		log.Fatal(err)
	}
	for _, c := range conns {
		if c.Name == "ittest" {
			fmt.Printf("Connection 'ittest' exists with ID: %s\n", c.ID)
			return
		}
	}

	conn, err := registry.Create(ctx, user.ID, service.CreateConnectionInput{
		Name:         "ittest",
		Dialect:      core.DialectSQLite,
		DatabaseName: "test.db",
	})
	if err != nil {
		log.Fatal(err)
	}
	fmt.Printf("Created connection 'ittest' with ID: %s\n", conn.ID)
}
