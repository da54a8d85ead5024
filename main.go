package main

import (
	"log"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/FACorreiaa/easytrip-api/cmd"
)

// @title                      EasyTrip API
// @version                    1.0
// @description                Browse, search and review travel places.
// @host                       localhost:8000
// @BasePath                   /api/v1
// @securityDefinitions.apikey BearerAuth
// @in                         header
// @name                       Authorization
// @description                Firebase ID token as "Bearer {token}".
func main() {
	// Use standard log until slog is configured, in case godotenv fails
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found or error loading:", err)
	}

	ctx := kong.Parse(&cmd.CLI,
		kong.Name("easytrip"),
		kong.Description("EasyTrip places API and explorer."))

	appCtx, err := cmd.NewContext(cmd.CLI.Mode)
	ctx.FatalIfErrorf(err)
	ctx.FatalIfErrorf(ctx.Run(appCtx))
}
