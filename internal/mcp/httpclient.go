package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/meltforce/repcycle/internal/cycle"
	"github.com/meltforce/repcycle/internal/exercises"
	"github.com/meltforce/repcycle/internal/models"
	"github.com/meltforce/repcycle/internal/training"
)

// HTTPClient implements DataSource by calling the RepCycle REST API.
// Used for remote MCP mode where the binary runs locally (stdio) but
// data lives on the remote server (accessed over Tailscale).
type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
}

// Compile-time check: HTTPClient satisfies DataSource.
var _ DataSource = (*HTTPClient)(nil)

// NewHTTPClient creates an HTTPClient targeting the given base URL.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// apiError is a non-2xx response. The server answers {"error": ...}.
type apiError struct {
	path   string
	status int
	body   []byte
}

func (e *apiError) Error() string {
	var msg struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(e.body, &msg) == nil && msg.Error != "" {
		return fmt.Sprintf("httpclient: %s returned %d: %s", e.path, e.status, msg.Error)
	}
	return fmt.Sprintf("httpclient: %s returned %d: %s", e.path, e.status, e.body)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, params url.Values, in, out any) error {
	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("httpclient: encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return fmt.Errorf("httpclient: create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("httpclient: %s: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("httpclient: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &apiError{path: path, status: resp.StatusCode, body: data}
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("httpclient: decode %s: %w", path, err)
	}
	return nil
}

func (c *HTTPClient) Catalog(ctx context.Context) (*models.Catalog, error) {
	var catalog models.Catalog
	if err := c.do(ctx, http.MethodGet, "/api/v1/catalog", nil, nil, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}

func (c *HTTPClient) ListExercises(ctx context.Context, _ int) ([]models.Exercise, error) {
	var list []models.Exercise
	if err := c.do(ctx, http.MethodGet, "/api/v1/exercises", nil, nil, &list); err != nil {
		return nil, err
	}
	return list, nil
}

func (c *HTTPClient) AddExercise(ctx context.Context, _ int, draft models.ExerciseDraft) (models.Exercise, error) {
	var e models.Exercise
	err := c.do(ctx, http.MethodPost, "/api/v1/exercises", nil, draft, &e)
	return e, err
}

func (c *HTTPClient) UpdateExercise(ctx context.Context, _ int, id string, patch models.ExercisePatch) error {
	return c.do(ctx, http.MethodPatch, "/api/v1/exercises/"+url.PathEscape(id), nil, patch, nil)
}

func (c *HTTPClient) DeleteExercise(ctx context.Context, _ int, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/v1/exercises/"+url.PathEscape(id), nil, nil, nil)
}

func (c *HTTPClient) TrainingStatus(ctx context.Context, _ int) (*training.Status, error) {
	var st training.Status
	if err := c.do(ctx, http.MethodGet, "/api/v1/training", nil, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *HTTPClient) MarkGroupDone(ctx context.Context, _ int, group models.Group) ([]models.Group, error) {
	return c.groupAction(ctx, group, "done")
}

func (c *HTTPClient) MarkGroupRetrain(ctx context.Context, _ int, group models.Group) ([]models.Group, error) {
	return c.groupAction(ctx, group, "retrain")
}

func (c *HTTPClient) groupAction(ctx context.Context, group models.Group, action string) ([]models.Group, error) {
	var resp struct {
		TrainedGroups []models.Group `json:"trainedGroups"`
	}
	path := "/api/v1/training/groups/" + url.PathEscape(string(group)) + "/" + action
	if err := c.do(ctx, http.MethodPost, path, nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.TrainedGroups, nil
}

// FinishCycle maps the server's 409 back to a *training.UntrainedError.
func (c *HTTPClient) FinishCycle(ctx context.Context, _ int, confirmed bool) (*cycle.FinishResult, error) {
	params := url.Values{}
	if confirmed {
		params.Set("confirm", "true")
	}

	var res cycle.FinishResult
	err := c.do(ctx, http.MethodPost, "/api/v1/training/finish", params, nil, &res)
	var ae *apiError
	if errors.As(err, &ae) && ae.status == http.StatusConflict {
		var body struct {
			Untrained []models.Group `json:"untrained"`
		}
		if json.Unmarshal(ae.body, &body) == nil {
			return nil, &training.UntrainedError{Groups: body.Untrained}
		}
	}
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *HTTPClient) TrainingPlan(ctx context.Context, _ int) (*models.Plan, error) {
	var plan models.Plan
	if err := c.do(ctx, http.MethodGet, "/api/v1/training/plan", nil, nil, &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (c *HTTPClient) TargetWeight(ctx context.Context, _ int, id string, cy models.Cycle) (*models.TargetWeight, error) {
	params := url.Values{}
	if cy != "" {
		params.Set("cycle", string(cy))
	}

	var tw models.TargetWeight
	err := c.do(ctx, http.MethodGet, "/api/v1/exercises/"+url.PathEscape(id)+"/weight", params, nil, &tw)
	var ae *apiError
	if errors.As(err, &ae) && ae.status == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", exercises.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &tw, nil
}

func (c *HTTPClient) Export(ctx context.Context, _ int) (*models.Snapshot, error) {
	var snap models.Snapshot
	if err := c.do(ctx, http.MethodGet, "/api/v1/export", nil, nil, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}
