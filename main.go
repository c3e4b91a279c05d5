package main

import (
	"github.com/findy-network/findy-courier/cmd"
)

func main() {
	cmd.Execute()
}
