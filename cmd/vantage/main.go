package main

import (
	"os"

	"horse.fit/vantage/internal/app"
)

func main() {
	os.Exit(app.Run(os.Args[1:]))
}
