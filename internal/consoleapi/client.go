package consoleapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// APIError is a failed console request. Details carries the backend's
// message, or the HTTP status text when the body had none.
type APIError struct {
	StatusCode int    `json:"-"`
	Details    string `json:"details"`
}

func (e *APIError) Error() string {
	return e.Details
}

// IsUnauthorized reports whether err is a 401/403 from the backend.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden
}

// Config configures a Client.
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
	Debug      bool
}

// Client calls the console REST backend.
type Client struct {
	http *resty.Client
}

// New returns a client for cfg.BaseURL.
func New(cfg Config) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("console server URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	client := resty.New().
		SetBaseURL(base).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetDebug(cfg.Debug)
	client.AddRetryCondition(retryCondition)

	c := &Client{http: client}
	c.SetToken(cfg.Token)
	return c, nil
}

type retryKey struct{}

// readOnly marks ctx as carrying a request that is safe to repeat. Several
// backend GET endpoints start tasks, so the method alone does not decide.
func readOnly(ctx context.Context) context.Context {
	return context.WithValue(ctx, retryKey{}, true)
}

// retryCondition retries read-only requests that failed in transit or with
// a 5xx.
func retryCondition(r *resty.Response, err error) bool {
	if r == nil || r.Request == nil {
		return false
	}
	if ok, _ := r.Request.Context().Value(retryKey{}).(bool); !ok {
		return false
	}
	if err != nil {
		return true
	}
	return r.StatusCode() >= 500
}

// SetToken replaces the bearer token used for subsequent requests.
func (c *Client) SetToken(token string) {
	if token == "" {
		c.http.Header.Del("Authorization")
		return
	}
	c.http.SetAuthToken(token)
}

// BaseURL returns the backend root URL.
func (c *Client) BaseURL() string {
	return c.http.BaseURL
}

type envelope struct {
	Data json.RawMessage `json:"data"`
}

// do sends one request and decodes the data field of the reply into out.
// Any status above 201 is an error.
func (c *Client) do(ctx context.Context, method, path string, query map[string]string, body, out interface{}) error {
	req := c.http.R().SetContext(ctx)
	if len(query) > 0 {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode() > http.StatusCreated {
		apiErr := &APIError{StatusCode: resp.StatusCode()}
		_ = json.Unmarshal(resp.Body(), apiErr)
		if apiErr.Details == "" {
			apiErr.Details = http.StatusText(resp.StatusCode())
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	var env envelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s data: %w", method, path, err)
	}
	return nil
}

// Login exchanges credentials for a bearer token.
func (c *Client) Login(ctx context.Context, username, password string, keepAlive bool) (string, error) {
	var token string
	body := map[string]interface{}{
		"username":  username,
		"password":  password,
		"keepAlive": keepAlive,
	}
	if err := c.do(ctx, http.MethodPost, "/auth/token", nil, body, &token); err != nil {
		return "", err
	}
	if token == "" {
		return "", errors.New("login succeeded but no token was returned")
	}
	return token, nil
}

// Ping checks that the current token is accepted.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(readOnly(ctx), http.MethodGet, "/auth/ping", nil, nil, nil)
}

// Register creates a user account.
func (c *Client) Register(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	return c.do(ctx, http.MethodPost, "/user", nil, body, nil)
}

func (c *Client) CurrentUser(ctx context.Context) (*User, error) {
	var user User
	if err := c.do(readOnly(ctx), http.MethodGet, "/user", nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ActiveOrLatestInstance returns the active instance, or the most recently
// deleted one when none is active. It returns nil when none was ever made.
func (c *Client) ActiveOrLatestInstance(ctx context.Context) (*Instance, error) {
	var inst *Instance
	if err := c.do(readOnly(ctx), http.MethodGet, "/instance", nil, nil, &inst); err != nil {
		return nil, err
	}
	return inst, nil
}

func (c *Client) InstanceStatus(ctx context.Context) (InstanceStatus, error) {
	var status InstanceStatus
	if err := c.do(readOnly(ctx), http.MethodGet, "/instance/status", nil, nil, &status); err != nil {
		return InstanceNone, err
	}
	return status, nil
}

// ActiveDeploymentTaskStatus returns the status of the latest deployment task.
func (c *Client) ActiveDeploymentTaskStatus(ctx context.Context) (TaskStatus, error) {
	var task Task
	query := map[string]string{"type": TaskTypeInstanceDeployment}
	if err := c.do(readOnly(ctx), http.MethodGet, "/task", query, nil, &task); err != nil {
		return "", err
	}
	return task.Status, nil
}

func (c *Client) ServerInfo(ctx context.Context) (*ServerInfo, error) {
	var info ServerInfo
	if err := c.do(readOnly(ctx), http.MethodGet, "/server/info", nil, nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

func (c *Client) TaskOverview(ctx context.Context) (*TaskOverview, error) {
	var overview TaskOverview
	if err := c.do(readOnly(ctx), http.MethodGet, "/task/overview", nil, nil, &overview); err != nil {
		return nil, err
	}
	return &overview, nil
}

// Tasks lists deployment tasks, newest first. Pages start at 1.
func (c *Client) Tasks(ctx context.Context, page, pageSize int) ([]JoinedTask, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 10
	}
	query := map[string]string{
		"page":     strconv.Itoa(page),
		"pageSize": strconv.Itoa(pageSize),
	}
	var tasks []JoinedTask
	if err := c.do(readOnly(ctx), http.MethodGet, "/task/s", query, nil, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

func (c *Client) CreateInstance(ctx context.Context, req CreateInstanceRequest) error {
	return c.do(ctx, http.MethodPost, "/instance", nil, req, nil)
}

// DeployInstance starts a deployment task on the active instance.
func (c *Client) DeployInstance(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/instance/deploy", nil, nil, nil)
}

// CreateAndDeploy creates an instance and deploys it in one task.
func (c *Client) CreateAndDeploy(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/instance/create-and-deploy", nil, nil, nil)
}

// DeleteInstance releases the active instance. With force set the instance
// is stopped first if it is still running.
func (c *Client) DeleteInstance(ctx context.Context, force bool) error {
	flag := "0"
	if force {
		flag = "1"
	}
	query := map[string]string{"force": flag, "forceStop": flag}
	return c.do(ctx, http.MethodDelete, "/instance", query, nil, nil)
}

func (c *Client) StartServer(ctx context.Context) error {
	return c.exec(ctx, "start_server")
}

func (c *Client) StopServer(ctx context.Context) error {
	return c.exec(ctx, "stop_server")
}

func (c *Client) exec(ctx context.Context, commandType string) error {
	return c.do(ctx, http.MethodGet, "/server/exec", map[string]string{"commandType": commandType}, nil, nil)
}

// Query runs a diagnostic query on the instance and returns its raw output.
func (c *Client) Query(ctx context.Context, queryType QueryType) (string, error) {
	var out string
	if err := c.do(readOnly(ctx), http.MethodGet, "/server/query", map[string]string{"queryType": string(queryType)}, nil, &out); err != nil {
		return "", err
	}
	return out, nil
}
