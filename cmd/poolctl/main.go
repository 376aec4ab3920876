// Command poolctl runs slot pool maintenance tasks against the configured store
package main

import "github.com/amirphl/tv-slot-pool/cmd/poolctl/cmd"

func main() {
	cmd.Execute()
}
