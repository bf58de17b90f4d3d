// Command zato-cache gets, sets and deletes keys through a server's cache API.
//
//	zato-cache --address localhost:17010 --password secret set counter 1 --int-value
//	zato-cache --path /opt/zato/server1 get counter
//	zato-cache --config ~/.zato-cache.yaml delete a b c
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
