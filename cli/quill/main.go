package main

import (
	"os"

	_ "github.com/joho/godotenv/autoload"

	quillcmder "github.com/papercomputeco/quill/cmd/quill"
)

func main() {
	cmd := quillcmder.NewQuillCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
