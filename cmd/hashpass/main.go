package main

import (
	"fmt"
	"os"

	"github.com/mpcoop/portal/internal/auth"
	"github.com/mpcoop/portal/internal/util"
)

// hashpass gera salt e hash para semear principals direto no banco.
func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: hashpass <password>")
		os.Exit(1)
	}

	password := os.Args[1]
	if err := util.ValidatePassword(password); err != nil {
		fmt.Fprintf(os.Stderr, "senha fraca: %v\n", err)
		os.Exit(1)
	}

	salt := auth.NewSalt()
	hash, err := auth.NewHasher(nil).Hash(password, salt)
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("salt=%s\nhash=%s\n", salt, hash)
}
