// Command event_vector_gen prints a deterministic commit chain for
// cross-implementation checks: a signed genesis and one data commit, with
// block hex and CIDs.
package main

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/ipfs/go-cid"

	"xdao.co/streams/events"
	"xdao.co/streams/keys"
	"xdao.co/streams/streamid"
)

func mustSigner(seedByte byte) *keys.Ed25519Signer {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = seedByte
	}
	s, err := keys.NewEd25519Signer(seed)
	if err != nil {
		panic(err)
	}
	return s
}

func mustSign(signer events.Signer, p events.Payload) ([]byte, cid.Cid) {
	env, err := events.Sign(context.Background(), signer, p)
	if err != nil {
		panic(err)
	}
	block, err := env.Encode()
	if err != nil {
		panic(err)
	}
	id, err := env.CID()
	if err != nil {
		panic(err)
	}
	return block, id
}

func main() {
	signer := mustSigner(0xA1)
	m, err := streamid.FromGenesis(streamid.TypeModel, []byte("conformance-model"))
	if err != nil {
		panic(err)
	}

	v0 := map[string]any{"title": "vector", "n": 1}
	v1 := map[string]any{"title": "vector", "n": 2, "tags": []any{"a"}}

	init, err := events.NewInit(events.InitParams{
		Content:    v0,
		Controller: signer.DID(),
		Model:      m,
		Unique:     []byte("vector-1"),
	})
	if err != nil {
		panic(err)
	}
	genesis, genesisCID := mustSign(signer, init)
	sid, err := streamid.New(streamid.TypeModelInstanceDocument, genesisCID)
	if err != nil {
		panic(err)
	}

	data, err := events.NewData(streamid.FromStream(sid, sid.CID()), v0, v1, nil)
	if err != nil {
		panic(err)
	}
	update, updateCID := mustSign(signer, data)

	fmt.Printf("CONTROLLER=%s\n", signer.DID())
	fmt.Printf("MODEL=%s\n", m)
	fmt.Printf("STREAM=%s\n", sid)
	fmt.Printf("GENESIS_CID=%s\n", genesisCID)
	fmt.Printf("GENESIS_HEX=%s\n", hex.EncodeToString(genesis))
	fmt.Printf("UPDATE_CID=%s\n", updateCID)
	fmt.Printf("UPDATE_HEX=%s\n", hex.EncodeToString(update))
}
