package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/quillchat/quill/internal/daemon"
	"github.com/quillchat/quill/internal/session"
	"go.uber.org/fx"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := session.Resolve(*profileFlag)
	if err := session.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	app := fx.New(
		daemon.Module(daemon.Params{ProfileName: profileName}),
	)

	app.Run()
}
