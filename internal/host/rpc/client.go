// Package rpc implements the JSON-RPC 2.0 client for the package-management
// host. The host is a separate process reached over a websocket; it pushes
// change notifications over the same connection.
//
// Every query method on Client is only legal from the coordinating dispatch
// loop. The client does not enforce that; the engine owns the discipline.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sourcegraph/jsonrpc2"
	wsstream "github.com/sourcegraph/jsonrpc2/websocket"
	"go.uber.org/zap"

	"github.com/forgeide/pkgsync/internal/domain/project"
	"github.com/forgeide/pkgsync/internal/domain/sources"
	"github.com/forgeide/pkgsync/internal/host"
	"github.com/forgeide/pkgsync/internal/infrastructure/logging"
	"github.com/forgeide/pkgsync/internal/infrastructure/monitoring"
	"github.com/forgeide/pkgsync/internal/infrastructure/resilience"
)

const (
	methodInstalledPackages = "packages/installed"
	methodInstall           = "packages/install"
	methodUninstall         = "packages/uninstall"
	methodProjects          = "solution/projects"
	methodResolve           = "solution/resolve"
	methodLanguage          = "solution/language"
	methodSources           = "sources/list"
)

// codeMalformedSources is the host's distinguished error code for a package
// source configuration it cannot parse.
const codeMalformedSources = -32001

// Client talks to the host and implements host.PackageQuery,
// host.SolutionView, host.SourceHost and host.PackageManager.
type Client struct {
	conn     *jsonrpc2.Conn
	breaker  *resilience.Breaker
	log      *logging.Logger
	metrics  *monitoring.Metrics
	onChange host.ChangeHandler
}

// Dial connects to the host at url (ws:// or wss://). onChange receives the
// host's pushed change notifications; it must not block.
func Dial(ctx context.Context, url string, log *logging.Logger, onChange host.ChangeHandler) (*Client, error) {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	ws, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial host: %w", err)
	}

	c := &Client{
		log:      log,
		onChange: onChange,
		breaker: resilience.New(resilience.Settings{
			FailureThreshold: 5,
			Cooldown:         10 * time.Second,
			OnStateChange: func(from, to resilience.State) {
				log.Warn("host breaker state changed",
					zap.Stringer("from", from),
					zap.Stringer("to", to))
			},
		}),
	}

	stream := wsstream.NewObjectStream(ws)
	c.conn = jsonrpc2.NewConn(ctx, stream, jsonrpc2.AsyncHandler(jsonrpc2.HandlerWithError(c.handle)))
	return c, nil
}

// WithMetrics adds host-call accounting to the client.
func (c *Client) WithMetrics(metrics *monitoring.Metrics) *Client {
	c.metrics = metrics
	return c
}

// Close tears down the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Disconnected is closed when the host connection drops.
func (c *Client) Disconnected() <-chan struct{} {
	return c.conn.DisconnectNotify()
}

// call performs one breaker-guarded host RPC.
func (c *Client) call(ctx context.Context, method string, params, result interface{}) error {
	err := c.breaker.Execute(func() error {
		return c.conn.Call(ctx, method, params, result)
	})
	if c.metrics != nil {
		status := "ok"
		if err != nil {
			status = "error"
		}
		c.metrics.RecordHostCall(method, status)
	}
	return err
}

type projectParams struct {
	ProjectID string `json:"projectId"`
}

type installedResult struct {
	Status   string            `json:"status"`
	Packages []host.PackageRef `json:"packages"`
}

// InstalledPackages implements host.PackageQuery.
func (c *Client) InstalledPackages(ctx context.Context, id host.NativeID) ([]host.PackageRef, error) {
	var result installedResult
	if err := c.call(ctx, methodInstalledPackages, projectParams{ProjectID: string(id)}, &result); err != nil {
		return nil, fmt.Errorf("installed packages query failed: %w", err)
	}
	if result.Status != "success" {
		return nil, fmt.Errorf("installed packages query for %q returned status %q", id, result.Status)
	}
	return result.Packages, nil
}

// CurrentProjects implements host.SolutionView.
func (c *Client) CurrentProjects(ctx context.Context) ([]project.ID, error) {
	var result struct {
		Projects []string `json:"projects"`
	}
	if err := c.call(ctx, methodProjects, nil, &result); err != nil {
		return nil, fmt.Errorf("solution projects query failed: %w", err)
	}
	ids := make([]project.ID, len(result.Projects))
	for i, p := range result.Projects {
		ids[i] = project.ID(p)
	}
	return ids, nil
}

// ResolveNativeID implements host.SolutionView. RPC failures read as
// unresolvable; the error is logged, not returned.
func (c *Client) ResolveNativeID(ctx context.Context, id project.ID) (host.NativeID, bool) {
	var result struct {
		NativeID string `json:"nativeId"`
		Found    bool   `json:"found"`
	}
	if err := c.call(ctx, methodResolve, projectParams{ProjectID: string(id)}, &result); err != nil {
		c.log.Warn("native id resolution failed",
			zap.String("project", string(id)),
			zap.Error(err))
		return "", false
	}
	if !result.Found {
		return "", false
	}
	return host.NativeID(result.NativeID), true
}

// ProjectLanguage implements host.SolutionView.
func (c *Client) ProjectLanguage(ctx context.Context, id project.ID) (host.Language, bool) {
	var result struct {
		Language string `json:"language"`
		Known    bool   `json:"known"`
	}
	if err := c.call(ctx, methodLanguage, projectParams{ProjectID: string(id)}, &result); err != nil {
		c.log.Warn("project language query failed",
			zap.String("project", string(id)),
			zap.Error(err))
		return "", false
	}
	if !result.Known {
		return "", false
	}
	return host.Language(result.Language), true
}

// Sources implements host.SourceHost.
func (c *Client) Sources(ctx context.Context) ([]sources.Source, error) {
	var result struct {
		Sources []sources.Source `json:"sources"`
	}
	if err := c.call(ctx, methodSources, nil, &result); err != nil {
		var rpcErr *jsonrpc2.Error
		if errors.As(err, &rpcErr) && rpcErr.Code == codeMalformedSources {
			return nil, fmt.Errorf("%w: %s", sources.ErrMalformedConfiguration, rpcErr.Message)
		}
		return nil, fmt.Errorf("source list query failed: %w", err)
	}
	return result.Sources, nil
}

type installParams struct {
	ProjectID string `json:"projectId"`
	Package   string `json:"package"`
	Version   string `json:"version,omitempty"`
}

// Install implements host.PackageManager.
func (c *Client) Install(ctx context.Context, id host.NativeID, name, version string) error {
	var result struct{}
	params := installParams{ProjectID: string(id), Package: name, Version: version}
	if err := c.call(ctx, methodInstall, params, &result); err != nil {
		return fmt.Errorf("install of %s failed: %w", name, err)
	}
	return nil
}

// Uninstall implements host.PackageManager.
func (c *Client) Uninstall(ctx context.Context, id host.NativeID, name string) error {
	var result struct{}
	params := installParams{ProjectID: string(id), Package: name}
	if err := c.call(ctx, methodUninstall, params, &result); err != nil {
		return fmt.Errorf("uninstall of %s failed: %w", name, err)
	}
	return nil
}

// handle receives host-pushed notifications and forwards the ones the engine
// cares about.
func (c *Client) handle(ctx context.Context, conn *jsonrpc2.Conn, req *jsonrpc2.Request) (interface{}, error) {
	if !req.Notif {
		return nil, &jsonrpc2.Error{Code: jsonrpc2.CodeMethodNotFound, Message: "client accepts notifications only"}
	}

	event, ok := c.parseNotification(req)
	if !ok {
		c.log.Debug("ignoring host notification", zap.String("method", req.Method))
		return nil, nil
	}

	if c.onChange != nil {
		c.onChange(event)
	}
	return nil, nil
}

func (c *Client) parseNotification(req *jsonrpc2.Request) (host.ChangeEvent, bool) {
	var kind host.EventKind
	switch req.Method {
	case "notify/projectAdded":
		kind = host.EventProjectAdded
	case "notify/projectChanged":
		kind = host.EventProjectChanged
	case "notify/projectRemoved":
		kind = host.EventProjectRemoved
	case "notify/solutionLoaded":
		kind = host.EventSolutionLoaded
	case "notify/solutionChanged":
		kind = host.EventSolutionChanged
	case "notify/sourcesChanged":
		kind = host.EventSourcesChanged
	default:
		return host.ChangeEvent{}, false
	}

	event := host.ChangeEvent{Kind: kind}
	if req.Params != nil {
		var p projectParams
		if err := json.Unmarshal(*req.Params, &p); err == nil {
			event.Project = project.ID(p.ProjectID)
		}
	}
	return event, true
}
