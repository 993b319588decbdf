package main

import "github.com/KaramelBytes/corrgraph-cli/cmd"

func main() {
	cmd.Execute()
}
