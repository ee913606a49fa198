package main

import (
	"crypto/rand"
)

// The prize catalog. Win conditions are evaluated over these tokens,
// so changing the catalog size changes game balance.
var itemCatalog = []string{
	"crown",
	"gem",
	"medal",
	"trophy",
}

// pickItem selects a uniformly random token from the catalog.
func pickItem() string {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back
		// to the first token rather than stalling the round.
		return itemCatalog[0]
	}
	return itemCatalog[int(b[0])%len(itemCatalog)]
}
