package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/mfigueroa/ordercore-backend/pkg/config"
	pkgerrors "github.com/mfigueroa/ordercore-backend/pkg/errors"
	"github.com/mfigueroa/ordercore-backend/pkg/logger"
)

var (
	errBaseURLRequired  = errors.New("erp base url is required")
	errDatabaseRequired = errors.New("erp database is required")
	errAPIKeyRequired   = errors.New("erp api key is required")
)

// Client speaks the ERP's JSON-RPC object API. Authentication happens
// lazily on first use and the uid is cached for the client's lifetime.
type Client struct {
	httpClient *http.Client
	baseURL    string
	database   string
	username   string
	apiKey     string
	logg       *logger.Logger

	authOnce sync.Once
	authErr  error
	uid      int64

	requestID atomic.Int64
}

func NewClient(ctx context.Context, cfg config.ERPConfig, logg *logger.Logger) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errBaseURLRequired
	}
	if strings.TrimSpace(cfg.Database) == "" {
		return nil, errDatabaseRequired
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errAPIKeyRequired
	}

	c := &Client{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    baseURL,
		database:   strings.TrimSpace(cfg.Database),
		username:   strings.TrimSpace(cfg.Username),
		apiKey:     strings.TrimSpace(cfg.APIKey),
		logg:       logg,
	}

	if logg != nil {
		logg.Info(ctx, "erp client initialized")
	}
	return c, nil
}

type rpcRequest struct {
	JSONRPC string    `json:"jsonrpc"`
	Method  string    `json:"method"`
	Params  rpcParams `json:"params"`
	ID      int64     `json:"id"`
}

type rpcParams struct {
	Service string `json:"service"`
	Method  string `json:"method"`
	Args    []any  `json:"args"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		Name    string `json:"name"`
		Message string `json:"message"`
	} `json:"data"`
}

func (e *rpcError) Error() string {
	if e.Data.Message != "" {
		return e.Data.Message
	}
	return e.Message
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

func (c *Client) call(ctx context.Context, service, method string, args []any, out any) error {
	body, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		Method:  "call",
		Params:  rpcParams{Service: service, Method: method, Args: args},
		ID:      c.requestID.Add(1),
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "marshal erp request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/jsonrpc", bytes.NewReader(body))
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build erp request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "erp unreachable")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return pkgerrors.New(pkgerrors.CodeDependency, fmt.Sprintf("erp returned %d", resp.StatusCode))
	}

	var envelope rpcResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode erp response")
	}
	if envelope.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, envelope.Error, fmt.Sprintf("erp %s.%s failed", service, method))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode erp result")
	}
	return nil
}

func (c *Client) authenticate(ctx context.Context) (int64, error) {
	c.authOnce.Do(func() {
		var uid int64
		err := c.call(ctx, "common", "login", []any{c.database, c.username, c.apiKey}, &uid)
		if err == nil && uid == 0 {
			err = pkgerrors.New(pkgerrors.CodeDependency, "erp rejected credentials")
		}
		c.uid, c.authErr = uid, err
	})
	return c.uid, c.authErr
}

// ExecuteKw runs a model method through the object service, the ERP's
// generic ORM entry point.
func (c *Client) ExecuteKw(ctx context.Context, model, method string, args []any, kwargs map[string]any, out any) error {
	uid, err := c.authenticate(ctx)
	if err != nil {
		return err
	}
	if kwargs == nil {
		kwargs = map[string]any{}
	}
	callArgs := []any{c.database, uid, c.apiKey, model, method, args, kwargs}
	return c.call(ctx, "object", "execute_kw", callArgs, out)
}

// SearchRead fetches records matching domain with the given fields.
func (c *Client) SearchRead(ctx context.Context, model string, domain []any, fields []string, limit int, out any) error {
	kwargs := map[string]any{"fields": fields}
	if limit > 0 {
		kwargs["limit"] = limit
	}
	return c.ExecuteKw(ctx, model, "search_read", []any{domain}, kwargs, out)
}

// Create inserts one record and returns its id.
func (c *Client) Create(ctx context.Context, model string, values map[string]any) (int64, error) {
	var id int64
	if err := c.ExecuteKw(ctx, model, "create", []any{values}, nil, &id); err != nil {
		return 0, err
	}
	return id, nil
}
