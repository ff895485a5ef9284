package main

import (
	"os"

	"github.com/MasterScott/LLDBagility/internal/cmd/root"
)

func main() {
	os.Exit(root.Execute())
}
