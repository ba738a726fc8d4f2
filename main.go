package main

import (
	"github.com/kilebles/ozon-parser/cmd"
)

func main() {
	cmd.Execute()
}
