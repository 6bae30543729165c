package sfu

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// WorkerClient talks to the SFU worker's HTTP control endpoint. Each
// application server runs one worker alongside it; the worker owns the media
// plane and this client only drives its control plane.
type WorkerClient struct {
	baseURL string
	http    *http.Client
}

func NewWorkerClient(baseURL string) *WorkerClient {
	return &WorkerClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type createRouterResponse struct {
	RouterID        uuid.UUID `json:"router_id"`
	RTPCapabilities string    `json:"rtp_capabilities"`
}

func (c *WorkerClient) CreateRouter(ctx context.Context) (RouterInfo, error) {
	var resp createRouterResponse
	if err := c.post(ctx, "/routers", nil, &resp); err != nil {
		return RouterInfo{}, fmt.Errorf("create router: %w", err)
	}
	return RouterInfo{RouterID: resp.RouterID, RTPCapabilities: resp.RTPCapabilities}, nil
}

func (c *WorkerClient) CloseRouter(ctx context.Context, routerID uuid.UUID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete,
		c.baseURL+"/routers/"+routerID.String(), nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("close router: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 && resp.StatusCode != http.StatusNotFound {
		return fmt.Errorf("close router: worker returned %d", resp.StatusCode)
	}
	return nil
}

func (c *WorkerClient) ConnectTransport(ctx context.Context, params ConnectParams) error {
	body := map[string]interface{}{
		"ip":   params.IP,
		"port": params.Port,
	}
	if params.SRTPParameters != "" {
		body["srtp_parameters"] = json.RawMessage(params.SRTPParameters)
	}
	path := "/transports/" + params.TransportID.String() + "/connect"
	if err := c.post(ctx, path, body, nil); err != nil {
		return fmt.Errorf("connect transport %s: %w", params.TransportID, err)
	}
	return nil
}

func (c *WorkerClient) post(ctx context.Context, path string, body, out interface{}) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("worker returned %d", resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
