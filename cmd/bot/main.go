package main

import "savings_circle_bot/internal/cli"

func main() {
	cli.Execute()
}
