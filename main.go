package main

import "github.com/consent-lineage/consent-sync-service/cmd"

func main() {
	cmd.Execute()
}
