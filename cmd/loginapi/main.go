package main

import (
	"log"

	"github.com/A1dos-Creations/login-api-website/cmd/internal/app"
)

func main() {
	if err := app.Run(); err != nil {
		log.Fatal(err)
	}
}
