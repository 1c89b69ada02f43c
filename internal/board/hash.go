package board

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// DomainNode prefixes node keys. The version suffix allows changing the
// rendering fed into the hash without colliding with old keys.
const DomainNode = "bonfire/node/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// CardKey is the key of a node whose card carries an element id. The card
// keeps its identity while its content re-renders (selection, avatars,
// summary edits), so only a card arriving in a list is an insertion.
func CardKey(elementID string) string {
	return "card:" + elementID
}

// NodeKey computes the content-addressed key of a rendered element without
// an identified card.
// The rendering is NFC-normalised first so that equivalent text produced by
// different renderers hashes identically.
func NodeKey(rendered string) string {
	return hashWithDomain(DomainNode, []byte(norm.NFC.String(rendered)))
}
