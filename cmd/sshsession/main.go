package main

import (
	"os"

	"github.com/yoanbernabeu/sshsession/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
