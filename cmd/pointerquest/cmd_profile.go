package main

import (
	"fmt"
	"strings"

	"github.com/pointerquest/engine/internal/progress"
)

// cmdInit creates the student profile for this installation
func cmdInit(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pointerquest init <name> [email]")
	}
	name := args[0]
	email := ""
	if len(args) > 1 {
		email = args[1]
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	profile, err := a.svc.InitializeProfile(name, email)
	if err != nil {
		return err
	}

	fmt.Printf("Welcome to Pointer Quest, %s!\n", profile.Name)
	fmt.Println("\nRecord your first lesson with: pointerquest record <lesson> <score>")
	return a.Close()
}

// cmdProfile shows or updates the profile
func cmdProfile(args []string) error {
	if len(args) > 0 && args[0] == "set" {
		return cmdProfileSet(args[1:])
	}

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	p, err := a.svc.GetProfile()
	if err != nil {
		return err
	}

	fmt.Println("Student Profile")
	fmt.Println("===============")
	fmt.Printf("Name:          %s\n", p.Name)
	if p.Email != "" {
		fmt.Printf("Email:         %s\n", p.Email)
	}
	fmt.Printf("Member Since:  %s\n", p.CreatedAt.Format("2006-01-02"))
	fmt.Printf("Completed:     %d lessons\n", len(p.CompletedLessons))
	fmt.Printf("Achievements:  %d\n", len(p.Achievements))
	return nil
}

func cmdProfileSet(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: pointerquest profile set <name|email> <value>")
	}
	field, value := args[0], strings.Join(args[1:], " ")

	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var update progress.ProfileUpdate
	switch field {
	case "name":
		update.Name = &value
	case "email":
		update.Email = &value
	default:
		return fmt.Errorf("unknown profile field %q (valid: name, email)", field)
	}

	if err := a.svc.UpdateProfile(update); err != nil {
		return err
	}
	fmt.Printf("Profile %s updated.\n", field)
	return a.Close()
}
