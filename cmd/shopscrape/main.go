package main

import (
	"context"

	"github.com/FranksOps/shopscrape/cmd/shopscrape/commands"
)

func main() {
	commands.ExecuteContext(context.Background())
}
