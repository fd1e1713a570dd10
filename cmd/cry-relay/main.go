// Command cry-relay runs the cry alert relay server.
package main

import "github.com/oshokin/cry-relay/cmd/cry-relay/cmd"

func main() {
	cmd.Execute()
}
