package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	hac_types "github.com/calehh/hac-gov/types"
	cmtlog "github.com/cometbft/cometbft/libs/log"
)

// ForwardRequest is the body POSTed for each downstream action.
type ForwardRequest struct {
	Proposal uint64          `json:"proposal"`
	Index    uint64          `json:"index"`
	Target   string          `json:"target"`
	Type     uint64          `json:"type"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

// Forwarder delivers executed actions that target other systems.
type Forwarder struct {
	Url     string
	retries uint
	backoff time.Duration
	client  *http.Client
	logger  cmtlog.Logger
}

func NewForwarder(url string, retries uint, wait time.Duration, logger cmtlog.Logger) *Forwarder {
	if retries == 0 {
		retries = 1
	}
	return &Forwarder{
		Url:     url,
		retries: retries,
		backoff: wait,
		client:  &http.Client{Timeout: 10 * time.Second},
		logger:  logger.With("module", "forwarder"),
	}
}

func (f *Forwarder) Forward(ctx context.Context, ev *hac_types.EventAction) error {
	req := ForwardRequest{
		Proposal: ev.Proposal,
		Index:    ev.Index,
		Target:   ev.Target,
		Type:     ev.Type,
	}
	if len(ev.Payload) > 0 {
		if json.Valid(ev.Payload) {
			req.Payload = ev.Payload
		} else {
			req.Payload, _ = json.Marshal(ev.Payload)
		}
	}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	action := func(attempt uint) error {
		err := f.post(ctx, body)
		if err != nil {
			f.logger.Info("forward attempt fail", "proposal", ev.Proposal, "index", ev.Index, "attempt", attempt, "err", err)
		}
		return err
	}
	return retry.Retry(action, strategy.Limit(f.retries), strategy.Backoff(backoff.Fibonacci(f.backoff)))
}

func (f *Forwarder) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.Url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := f.client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("forward status %d: %s", res.StatusCode, bytes.TrimSpace(msg))
	}
	return nil
}
