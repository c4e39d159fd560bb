package main

import "fieldkey/cmd/fieldctl/cmd"

func main() {
	cmd.Execute()
}
