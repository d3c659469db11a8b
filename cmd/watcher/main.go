package main

import "solana-buy-watcher/internal/cli"

func main() {
	cli.Execute()
}
