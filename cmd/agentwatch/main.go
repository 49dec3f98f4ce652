package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/Iron-Ham/agentwatch/internal/cmd"
)

func main() {
	// A .env file is optional; the environment wins for keys it already has.
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
