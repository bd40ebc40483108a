package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/timepulse/timepulse-api/internal/config"
	"github.com/timepulse/timepulse-api/internal/database"
	"github.com/timepulse/timepulse-api/internal/logger"
	"github.com/timepulse/timepulse-api/internal/models"
	"github.com/timepulse/timepulse-api/internal/services"
)

func main() {
	if len(os.Args) < 2 || len(os.Args) > 3 {
		fmt.Println("Usage: promote-admin <email> [--revoke]")
		os.Exit(1)
	}

	email := os.Args[1]
	role := models.GlobalRoleSuperAdmin
	if len(os.Args) == 3 {
		if os.Args[2] != "--revoke" {
			fmt.Println("Usage: promote-admin <email> [--revoke]")
			os.Exit(1)
		}
		role = models.GlobalRoleUser
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx := context.Background()

	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	err = services.NewUserService(db).SetGlobalRole(ctx, email, role)
	if errors.Is(err, services.ErrUserNotFound) {
		logger.Log.Error("no user found", "email", email)
		os.Exit(1)
	}
	if err != nil {
		logger.Log.Error("failed to update user", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully set %s to %s\n", email, role)
}
