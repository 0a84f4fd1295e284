// Package main is the command-line client of the credential service.
//
//	client -cmd register -id alice
//	client -cmd login -id alice
//	client -cmd reset-password
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/atinyakov/credkeeper/internal/client"
)

var (
	version   string
	buildDate string
)

// main parses command-line flags and dispatches to register, login or reset-password.
func main() {
	var (
		cmd        string
		baseURL    string
		caFile     string
		identifier string
		statePath  string
		showVer    bool
	)

	flag.StringVar(&cmd, "cmd", "", "command: register | login | reset-password")
	flag.StringVar(&baseURL, "url", "", "server base URL (default http://localhost:5000 or the last used one)")
	flag.StringVar(&caFile, "ca", "", "path to CA cert for an HTTPS server")
	flag.StringVar(&identifier, "id", "", "account identifier")
	flag.StringVar(&statePath, "state", client.DefaultStateFile, "path to the client state file")
	flag.BoolVar(&showVer, "version", false, "show build version and date")
	flag.Parse()

	if showVer {
		fmt.Printf("credkeeper client\nVersion: %s\nBuild Date: %s\n", version, buildDate)
		return
	}

	state, err := client.LoadState(statePath)
	if err != nil {
		log.Fatal(err)
	}
	if baseURL == "" {
		baseURL = state.BaseURL
	}
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}

	httpClient, err := client.NewHTTPClient(caFile)
	if err != nil {
		log.Fatal(err)
	}
	api := client.NewAPI(baseURL, httpClient, state)
	prompt := client.NewPrompter()
	ctx := context.Background()

	var msg string
	switch cmd {
	case "register", "login":
		if identifier == "" {
			log.Fatal("please provide -id=identifier")
		}
		secret, err := prompt.Secret("Secret: ")
		if err != nil {
			log.Fatal(err)
		}
		if cmd == "register" {
			msg, err = api.Register(ctx, identifier, secret)
		} else {
			msg, err = api.Login(ctx, identifier, secret)
		}
		if err != nil {
			log.Fatal(err)
		}
		if cmd == "login" {
			if err := state.Save(statePath); err != nil {
				log.Fatal(err)
			}
		}
	case "reset-password":
		oldSecret, err := prompt.Secret("Current secret: ")
		if err != nil {
			log.Fatal(err)
		}
		newSecret, err := prompt.Secret("New secret: ")
		if err != nil {
			log.Fatal(err)
		}
		confirm, err := prompt.Secret("Confirm new secret: ")
		if err != nil {
			log.Fatal(err)
		}
		msg, err = api.ResetPassword(ctx, oldSecret, newSecret, confirm)
		if errors.Is(err, client.ErrNotLoggedIn) {
			log.Fatalf("%v (state file %s)", err, statePath)
		}
		if err != nil {
			log.Fatal(err)
		}
	default:
		flag.Usage()
		os.Exit(2)
	}

	fmt.Println("✅ " + msg)
}
