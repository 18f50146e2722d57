package main

import (
	"fmt"
	"os"

	"vaultauth/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "vaultauth:", err)
		os.Exit(1)
	}
}
