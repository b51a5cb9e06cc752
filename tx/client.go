package tx

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"

	cmtcrypto "github.com/cometbft/cometbft/crypto"
	cmtlog "github.com/cometbft/cometbft/libs/log"
	comethttp "github.com/cometbft/cometbft/rpc/client/http"
	coretypes "github.com/cometbft/cometbft/rpc/core/types"

	"github.com/calehh/council-app/types"
)

const (
	NonceQueryPath      = "/nonce/"
	DecryptionQueryPath = "/decryption/"
)

// Client signs transactions with a single key and broadcasts them to a node. Nonces are
// tracked locally so consecutive sends in one block do not collide.
type Client struct {
	mtx     sync.Mutex
	logger  cmtlog.Logger
	cli     *comethttp.HTTP
	key     cmtcrypto.PrivKey
	chainId string
	next    uint64
}

func NewClient(url, chainId string, key cmtcrypto.PrivKey, logger cmtlog.Logger) (*Client, error) {
	cli, err := comethttp.New(url, "/websocket")
	if err != nil {
		return nil, err
	}
	return &Client{
		logger:  logger.With("module", "txclient"),
		cli:     cli,
		key:     key,
		chainId: chainId,
	}, nil
}

func (c *Client) Address() string {
	return c.key.PubKey().Address().String()
}

func (c *Client) Nonce(ctx context.Context) (nonce uint64, err error) {
	res, err := c.cli.ABCIQuery(ctx, NonceQueryPath, []byte(c.Address()))
	if err != nil {
		return
	}
	if res.Response.Code != 0 {
		err = fmt.Errorf("query nonce: code %d: %s", res.Response.Code, res.Response.Log)
		return
	}
	err = json.Unmarshal(res.Response.Value, &nonce)
	return
}

// DecryptionTarget queries the committed decryption state of a resolution. It lets a
// gateway holding this client refuse requests that do not match the chain.
func (c *Client) DecryptionTarget(ctx context.Context, resolution uint64) (*types.DecryptionTarget, error) {
	var id [8]byte
	binary.BigEndian.PutUint64(id[:], resolution)
	res, err := c.cli.ABCIQuery(ctx, DecryptionQueryPath, id[:])
	if err != nil {
		return nil, err
	}
	if res.Response.Code != 0 {
		return nil, fmt.Errorf("query decryption target: code %d: %s", res.Response.Code, res.Response.Log)
	}
	var t types.DecryptionTarget
	if err = json.Unmarshal(res.Response.Value, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Send signs payload as a tx of type tp and broadcasts it. The error is non-nil when the
// node rejects the tx in CheckTx.
func (c *Client) Send(ctx context.Context, tp CouncilTxType, payload any) (res *coretypes.ResultBroadcastTx, err error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	nonce, err := c.Nonce(ctx)
	if err != nil {
		return
	}
	if c.next > nonce {
		nonce = c.next
	}
	btx := NewTx(tp, nonce, payload)
	if err = btx.Sign(c.chainId, c.key); err != nil {
		return
	}
	dat, err := MarshalTx(btx)
	if err != nil {
		return
	}
	res, err = c.cli.BroadcastTxSync(ctx, dat)
	if err != nil {
		return
	}
	if res.Code != 0 {
		err = fmt.Errorf("%v tx rejected: code %d: %s", tp, res.Code, res.Log)
		return
	}
	c.next = nonce + 1
	c.logger.Debug("tx broadcast", "type", tp, "nonce", nonce, "hash", res.Hash)
	return
}

// OnDecryptionResolved submits gateway results as a DecryptionResult tx signed by the
// gateway key. caller must be the address of that key.
func (c *Client) OnDecryptionResolved(ctx context.Context, caller string, correlation uint64, plaintexts []uint64) error {
	if caller != c.Address() {
		return fmt.Errorf("gateway identity %s does not match signing key %s", caller, c.Address())
	}
	_, err := c.Send(ctx, TxTypeDecryptionResult, &DecryptionResultTx{
		Correlation: correlation,
		Plaintexts:  plaintexts,
	})
	return err
}
