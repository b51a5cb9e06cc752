package crypto

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/cometbft/cometbft/crypto"
	"github.com/cometbft/cometbft/crypto/ed25519"
	cmtjson "github.com/cometbft/cometbft/libs/json"
	"github.com/cometbft/cometbft/privval"
)

// PV is an ed25519 signing identity read from a privval key file. Members, the administrator
// and the decryption gateway all sign with one.
type PV struct {
	privateKey crypto.PrivKey
	publicKey  crypto.PubKey
}

func LoadFilePV(keyFilePath string) (*PV, error) {
	keyJSONBytes, err := os.ReadFile(keyFilePath)
	if err != nil {
		return nil, err
	}
	pvKey := privval.FilePVKey{}
	err = cmtjson.Unmarshal(keyJSONBytes, &pvKey)
	if err != nil {
		return nil, fmt.Errorf("reading key from %v: %w", keyFilePath, err)
	}
	return &PV{
		privateKey: pvKey.PrivKey,
		publicKey:  pvKey.PubKey,
	}, nil
}

// LoadOrGenFilePV loads the key at keyFilePath, creating a fresh one if the file is missing.
func LoadOrGenFilePV(keyFilePath string) (*PV, error) {
	if _, err := os.Stat(keyFilePath); err == nil {
		return LoadFilePV(keyFilePath)
	}
	if err := os.MkdirAll(filepath.Dir(keyFilePath), 0o700); err != nil {
		return nil, err
	}
	priv := ed25519.GenPrivKey()
	pvKey := privval.FilePVKey{
		Address: priv.PubKey().Address(),
		PubKey:  priv.PubKey(),
		PrivKey: priv,
	}
	dat, err := cmtjson.MarshalIndent(pvKey, "", "  ")
	if err != nil {
		return nil, err
	}
	if err = os.WriteFile(keyFilePath, dat, 0o600); err != nil {
		return nil, err
	}
	return &PV{privateKey: priv, publicKey: priv.PubKey()}, nil
}

func (k *PV) PrivKey() crypto.PrivKey {
	return k.privateKey
}

func (k *PV) PublicKey() []byte {
	return k.publicKey.Bytes()
}

func (k *PV) Address() string {
	return k.publicKey.Address().String()
}

func (k *PV) Sign(data []byte) ([]byte, error) {
	return k.privateKey.Sign(data)
}
