package main

import (
	"github.com/axellelanca/shortlinks/cmd"
	_ "github.com/axellelanca/shortlinks/cmd/cli"
	_ "github.com/axellelanca/shortlinks/cmd/server"
)

func main() {
	cmd.Execute()
}
