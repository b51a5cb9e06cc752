package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	cmtcrypto "github.com/cometbft/cometbft/crypto"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

const RequestPath = "/requestDecryption"

// HTTP forwards requests to a remote gateway service, signed with the node key.
type HTTP struct {
	Url    string
	key    cmtcrypto.PrivKey
	client *http.Client
	logger cmtlog.Logger
}

func NewHTTP(url string, key cmtcrypto.PrivKey, logger cmtlog.Logger) *HTTP {
	return &HTTP{
		Url:    url,
		key:    key,
		client: &http.Client{Timeout: 10 * time.Second},
		logger: logger.With("module", "gateway-http"),
	}
}

func (h *HTTP) RequestDecryption(ctx context.Context, req Request) error {
	if err := req.Validate(); err != nil {
		return err
	}
	target, err := url.JoinPath(h.Url, RequestPath)
	if err != nil {
		h.logger.Error("join url fail", "err", err)
		return err
	}
	signed, err := SignRequest(req, h.key)
	if err != nil {
		return err
	}
	body, err := json.Marshal(signed)
	if err != nil {
		return err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return err
	}
	hreq.Header.Set("Content-Type", "application/json")
	res, err := h.client.Do(hreq)
	if err != nil {
		h.logger.Error("post decryption request fail", "id", req.ID, "err", err)
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(res.Body)
		return fmt.Errorf("%w: status %d: %s", ErrRemoteFail, res.StatusCode, bytes.TrimSpace(msg))
	}
	h.logger.Info("decryption request forwarded", "id", req.ID, "correlation", req.Correlation)
	return nil
}
