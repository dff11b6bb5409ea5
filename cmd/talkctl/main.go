// Command talkctl administers a talk-service deployment: schema migrations,
// participants, agents, passkeys, tokens and the public history.
//
// It talks to the database directly. Effects on live connections (the
// disconnect on deactivation, the notice on history clear) only reach clients
// of a running server when the same action goes through its /admin/v1 API.
package main

import (
	"os"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
