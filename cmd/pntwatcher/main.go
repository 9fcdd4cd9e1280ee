package main

import "pnt-integrity-alerts/internal/cli"

func main() {
	cli.Execute()
}
