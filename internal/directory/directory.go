// Package directory is the REST client for the space directory, with a
// read-through cache the UI reads from.
package directory

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/pelusa-v/pelusa-spaces/internal/chat"
	"github.com/pkg/errors"
	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

type Directory struct {
	baseURL string
	client  *fasthttp.Client
	timeout time.Duration
	log     *zap.Logger

	mu     sync.RWMutex
	spaces []chat.Space
}

// New returns a directory for baseURL (e.g. http://host/api). A nil client
// gets a default fasthttp.Client.
func New(baseURL string, client *fasthttp.Client, timeout time.Duration, log *zap.Logger) *Directory {
	if client == nil {
		client = &fasthttp.Client{Name: "pelusa-spaces"}
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Directory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		timeout: timeout,
		log:     log.Named("directory"),
	}
}

// LoadAll fetches every space and replaces the cache.
func (d *Directory) LoadAll(ctx context.Context) ([]chat.Space, error) {
	var spaces []chat.Space
	if err := d.do(ctx, "list", fasthttp.MethodGet, "/spaces", nil, &spaces); err != nil {
		return nil, err
	}
	d.mu.Lock()
	d.spaces = spaces
	d.mu.Unlock()
	d.log.Debug("spaces loaded", zap.Int("count", len(spaces)))
	return append([]chat.Space(nil), spaces...), nil
}

type createRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	CreatedBy   string `json:"createdBy"`
}

// Create registers a new space and refreshes the cache. A blank name is
// rejected without a request.
func (d *Directory) Create(ctx context.Context, name, description, createdBy string) (chat.Space, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return chat.Space{}, &chat.ValidationError{Field: "name", Reason: "must not be empty"}
	}
	req := createRequest{Name: name, Description: strings.TrimSpace(description), CreatedBy: createdBy}
	var created chat.Space
	if err := d.do(ctx, "create", fasthttp.MethodPost, "/spaces", req, &created); err != nil {
		return chat.Space{}, err
	}
	if _, err := d.LoadAll(ctx); err != nil {
		d.log.Warn("refresh after create", zap.Error(err))
	}
	return created, nil
}

func (d *Directory) Spaces() []chat.Space {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return append([]chat.Space(nil), d.spaces...)
}

func (d *Directory) Lookup(id string) (chat.Space, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sp := range d.spaces {
		if sp.ID == id {
			return sp, true
		}
	}
	return chat.Space{}, false
}

// Default is the cached entry flagged isDefault.
func (d *Directory) Default() (chat.Space, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, sp := range d.spaces {
		if sp.IsDefault {
			return sp, true
		}
	}
	return chat.Space{}, false
}

func (d *Directory) do(ctx context.Context, op, method, path string, body, out any) error {
	if err := ctx.Err(); err != nil {
		return &chat.DirectoryError{Op: op, Err: err}
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(d.baseURL + path)
	req.Header.SetMethod(method)
	req.Header.Set(fasthttp.HeaderAccept, "application/json")
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return &chat.DirectoryError{Op: op, Err: errors.Wrap(err, "encode request")}
		}
		req.Header.SetContentType("application/json")
		req.SetBody(raw)
	}

	deadline := time.Now().Add(d.timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := d.client.DoDeadline(req, resp, deadline); err != nil {
		return &chat.DirectoryError{Op: op, Err: err}
	}

	status := resp.StatusCode()
	if status < 200 || status >= 300 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(resp.Body(), &e)
		derr := &chat.DirectoryError{Op: op, Status: status, Message: e.Error}
		if derr.Message == "" {
			derr.Message = fasthttp.StatusMessage(status)
		}
		if status == fasthttp.StatusConflict {
			derr.Err = chat.ErrDuplicate
		}
		return derr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &chat.DirectoryError{Op: op, Status: status, Err: errors.Wrap(err, "decode response")}
	}
	return nil
}
