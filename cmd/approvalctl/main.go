package main

import "github.com/kwayummari/ghf-approval-engine/internal/cli"

func main() {
	cli.Execute()
}
