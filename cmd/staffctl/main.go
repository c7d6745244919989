package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/vibranium-fest/pass-server-go/internal/database"
	"github.com/vibranium-fest/pass-server-go/internal/model"
	"github.com/vibranium-fest/pass-server-go/internal/repository"
	"github.com/vibranium-fest/pass-server-go/internal/util"
)

// staffctl provisions check-in operator accounts. The generated token is
// printed exactly once; only its hash is stored.
func main() {
	name := flag.String("name", "", "staff account name")
	role := flag.String("role", string(model.StaffRoleVolunteer), "role: volunteer or organizer")
	disable := flag.String("disable", "", "disable the staff account with this ID instead of creating one")
	flag.Parse()

	_ = godotenv.Load()

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		fmt.Fprintln(os.Stderr, "DATABASE_URL is required")
		os.Exit(1)
	}

	db, err := database.Connect(databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "connect: %v\n", err)
		os.Exit(1)
	}
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	staffRepo := repository.NewStaffRepository(db.DB)

	if *disable != "" {
		if err := staffRepo.Disable(ctx, *disable); err != nil {
			fmt.Fprintf(os.Stderr, "disable: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("disabled %s\n", *disable)
		return
	}

	if *name == "" {
		fmt.Fprintln(os.Stderr, "usage: staffctl -name <name> [-role volunteer|organizer]")
		os.Exit(1)
	}
	staffRole := model.StaffRole(*role)
	if staffRole != model.StaffRoleVolunteer && staffRole != model.StaffRoleOrganizer {
		fmt.Fprintf(os.Stderr, "unknown role %q\n", *role)
		os.Exit(1)
	}

	token, err := util.GenerateToken()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate token: %v\n", err)
		os.Exit(1)
	}

	staff, err := staffRepo.Create(ctx, model.CreateStaffAccountParams{
		Name:      *name,
		Role:      staffRole,
		TokenHash: util.HashToken(token),
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "create: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("id:    %s\n", staff.ID)
	fmt.Printf("role:  %s\n", staff.Role)
	fmt.Printf("token: %s\n", token)
}
