package bluesky

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/blackmichael/music-feeds/internal/domain"
)

const DefaultPDS = "https://bsky.social"

// ErrNotAuthenticated is returned by record operations called before Login.
var ErrNotAuthenticated = errors.New("not authenticated: call Login first")

// XRPCError is a non-2xx response from the PDS.
type XRPCError struct {
	Status  int
	Name    string `json:"error"`
	Message string `json:"message"`
}

func (e *XRPCError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("xrpc status %d", e.Status)
	}
	return fmt.Sprintf("xrpc status %d: %s: %s", e.Status, e.Name, e.Message)
}

// Client manages the feed generator records of a single account.
type Client struct {
	pds        string
	httpClient *http.Client

	// populated after Login
	accessJwt string
	did       string
}

// NewClient creates a client for the given PDS, defaulting to DefaultPDS.
func NewClient(pds string) *Client {
	if pds == "" {
		pds = DefaultPDS
	}
	return &Client{
		pds: pds,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Login creates a session. Use an app password, not the account password.
func (c *Client) Login(ctx context.Context, identifier, password string) error {
	req := createSessionRequest{Identifier: identifier, Password: password}

	var resp createSessionResponse
	if err := c.call(ctx, "com.atproto.server.createSession", req, &resp); err != nil {
		return fmt.Errorf("create session: %w", err)
	}

	c.accessJwt = resp.AccessJwt
	c.did = resp.DID
	return nil
}

// DID returns the authenticated account's DID. Only valid after Login.
func (c *Client) DID() string {
	return c.did
}

// GeneratorRecord is the body of an app.bsky.feed.generator record.
type GeneratorRecord struct {
	DID         string `json:"did"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt"`
}

// PublishFeed writes the generator record for algorithm into the
// authenticated repo and returns the resulting feed URI.
func (c *Client) PublishFeed(ctx context.Context, algorithm string, record GeneratorRecord) (string, error) {
	if c.accessJwt == "" {
		return "", ErrNotAuthenticated
	}

	req := putRecordRequest{
		Repo:       c.did,
		Collection: domain.GeneratorCollection,
		RKey:       algorithm,
		Record:     record,
	}

	var resp putRecordResponse
	if err := c.call(ctx, "com.atproto.repo.putRecord", req, &resp); err != nil {
		return "", fmt.Errorf("put record: %w", err)
	}
	if resp.URI == "" {
		resp.URI = domain.NewFeedConfig(c.did, algorithm).URI
	}
	return resp.URI, nil
}

// UnpublishFeed deletes the generator record for algorithm.
func (c *Client) UnpublishFeed(ctx context.Context, algorithm string) error {
	if c.accessJwt == "" {
		return ErrNotAuthenticated
	}

	req := deleteRecordRequest{
		Repo:       c.did,
		Collection: domain.GeneratorCollection,
		RKey:       algorithm,
	}
	if err := c.call(ctx, "com.atproto.repo.deleteRecord", req, nil); err != nil {
		return fmt.Errorf("delete record: %w", err)
	}
	return nil
}

// call POSTs body as JSON to the named XRPC procedure and decodes the
// response into result when it is non-nil.
func (c *Client) call(ctx context.Context, nsid string, body, result any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.pds+"/xrpc/"+nsid, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.accessJwt != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessJwt)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		xerr := &XRPCError{Status: resp.StatusCode}
		_ = json.Unmarshal(respBody, xerr)
		return xerr
	}

	if result != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}
	return nil
}

type createSessionRequest struct {
	Identifier string `json:"identifier"`
	Password   string `json:"password"`
}

type createSessionResponse struct {
	AccessJwt string `json:"accessJwt"`
	DID       string `json:"did"`
}

type putRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
	Record     any    `json:"record"`
}

type putRecordResponse struct {
	URI string `json:"uri"`
	CID string `json:"cid"`
}

type deleteRecordRequest struct {
	Repo       string `json:"repo"`
	Collection string `json:"collection"`
	RKey       string `json:"rkey"`
}
