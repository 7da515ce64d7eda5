// Package privval manages the gadget's signing identity: a secp256k1
// private key persisted to disk as a WIF-encoded string, in the same
// atomic-JSON-file pattern the teacher's FilePV uses for its validator key
// (tendermint/libs/json + tendermint/libs/tempfile + tendermint/libs/os).
//
// randpa-private-key is the gadget's one configuration option (spec.md
// §6). In LoadFilePV an unreadable file or a malformed key is a fatal
// configuration error (spec.md §7 "Malformed private key at startup"),
// so load failures exit the process directly rather than bubbling an
// error the caller might ignore -- matching the teacher's own
// tmos.Exit-on-load-failure convention. LoadOrGenFilePV, which node.NewNode
// uses, generates and saves a new key when the file does not exist.
package privval

import (
	"fmt"
	"os"

	tmjson "github.com/tendermint/tendermint/libs/json"
	tmos "github.com/tendermint/tendermint/libs/os"
	"github.com/tendermint/tendermint/libs/tempfile"

	"github.com/mixbytes/randpa/types"
)

// FilePVKey is the on-disk representation of the gadget's signing identity.
// PublicKey is redundant with PrivateKey but kept, as the teacher does for
// its own validator key file, so the file is self-describing without a
// decode.
type FilePVKey struct {
	PublicKey  string `json:"pub_key"`
	PrivateKey string `json:"priv_key"` // WIF-encoded

	filePath string
	priv     types.PrivateKey
}

// Save persists the key to its filePath.
func (k *FilePVKey) Save() {
	if k.filePath == "" {
		panic("privval: cannot save key, filePath not set")
	}
	jsonBytes, err := tmjson.MarshalIndent(k, "", "  ")
	if err != nil {
		panic(err)
	}
	if err := tempfile.WriteFileAtomic(k.filePath, jsonBytes, 0600); err != nil {
		panic(err)
	}
}

// FilePV is the gadget's signing identity: one secp256k1 key used both to
// vote/sign proofs and, via recovery, as the node's wire identity.
type FilePV struct {
	Key FilePVKey
}

// NewFilePV wraps priv for persistence at keyFilePath, without saving it.
func NewFilePV(priv types.PrivateKey, keyFilePath string) *FilePV {
	wif, err := types.EncodeWIF(priv)
	if err != nil {
		panic(err)
	}
	return &FilePV{
		Key: FilePVKey{
			PublicKey:  priv.PublicKey().String(),
			PrivateKey: wif,
			filePath:   keyFilePath,
			priv:       priv,
		},
	}
}

// GenFilePV generates a new random key and sets filePath, but does not save.
func GenFilePV(keyFilePath string) *FilePV {
	priv, err := types.GeneratePrivateKey()
	if err != nil {
		panic(err)
	}
	return NewFilePV(priv, keyFilePath)
}

// LoadFilePV loads a FilePV from keyFilePath. An unreadable file or a key
// that fails WIF decoding is a fatal configuration error (spec.md §7).
func LoadFilePV(keyFilePath string) *FilePV {
	jsonBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		tmos.Exit(err.Error())
	}

	var key FilePVKey
	if err := tmjson.Unmarshal(jsonBytes, &key); err != nil {
		tmos.Exit(fmt.Sprintf("privval: malformed key file %s: %v", keyFilePath, err))
	}

	priv, err := types.DecodeWIF(key.PrivateKey)
	if err != nil {
		tmos.Exit(fmt.Sprintf("privval: malformed randpa-private-key in %s: %v", keyFilePath, err))
	}

	key.filePath = keyFilePath
	key.priv = priv
	key.PublicKey = priv.PublicKey().String()
	return &FilePV{Key: key}
}

// LoadOrGenFilePV loads keyFilePath if it exists, else generates and saves
// a new key there.
func LoadOrGenFilePV(keyFilePath string) *FilePV {
	if tmos.FileExists(keyFilePath) {
		return LoadFilePV(keyFilePath)
	}
	pv := GenFilePV(keyFilePath)
	pv.Save()
	return pv
}

// PrivateKey returns the signing key, for round/engine construction.
func (pv *FilePV) PrivateKey() types.PrivateKey { return pv.Key.priv }

// PublicKey returns the corresponding public key.
func (pv *FilePV) PublicKey() types.PublicKey { return pv.Key.priv.PublicKey() }

// Save persists the key to disk.
func (pv *FilePV) Save() { pv.Key.Save() }

func (pv *FilePV) String() string {
	return fmt.Sprintf("FilePV{%s}", pv.PublicKey())
}
