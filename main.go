package main

import (
	"github.com/AzielCF/az-infer/cmd"
)

func main() {
	cmd.Execute()
}
