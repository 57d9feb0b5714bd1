// Command fleet manages a fleet of sailing vessels stored with narwhal.
package main

import "github.com/mesh-intelligence/narwhal/internal/cli"

func main() {
	cli.Execute()
}
