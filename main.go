package main

import (
	"github.com/Tarcizioo/portal-animes-V2-sub001/cmd"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd.SetVersion(version, buildTime)
	cmd.Execute()
}
