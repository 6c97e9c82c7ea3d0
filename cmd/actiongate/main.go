// Command actiongate runs the action-authorization gateway.
package main

import "github.com/sentinelguard/actiongate/cmd/actiongate/cmd"

func main() {
	cmd.Execute()
}
