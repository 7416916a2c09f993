package appctx

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"imagevariants/internal/config"
	"imagevariants/internal/model"
	"imagevariants/internal/publish"
)

// Context describes the running application: its id, the application owning the image
// directory, its public base URL and its path aliases.
type Context struct {
	appID     string
	owner     string
	baseURL   string
	aliases   map[string]string
	publisher publish.Publisher
}

// New builds a Context from configuration. publisher serves non-owner applications and may be
// nil when this process is the owner.
func New(cfg config.ImagesConfig, publisher publish.Publisher) *Context {
	aliases := make(map[string]string, len(cfg.Aliases))
	for k, v := range cfg.Aliases {
		aliases[strings.TrimPrefix(k, "@")] = v
	}
	return &Context{
		appID:     cfg.AppID,
		owner:     cfg.AppOwner,
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		aliases:   aliases,
		publisher: publisher,
	}
}

// ResolveAlias turns "@name" or "@name/sub/dir" into an absolute directory.
func (c *Context) ResolveAlias(alias string) (string, error) {
	name, rest, _ := strings.Cut(strings.TrimPrefix(alias, "@"), "/")
	root, ok := c.aliases[name]
	if !ok {
		return "", model.ConfigError("resolve alias", fmt.Errorf("unknown alias @%s", name))
	}
	abs, err := filepath.Abs(filepath.Join(root, rest))
	if err != nil {
		return "", model.ConfigError("resolve alias", err)
	}
	return abs, nil
}

// IsOwner reports whether this process serves the image directory itself.
func (c *Context) IsOwner() bool {
	return c.appID == c.owner
}

// BaseURL is the public base URL of this application, without a trailing slash.
func (c *Context) BaseURL() string {
	return c.baseURL
}

// PublishedURL publishes dir for this application and returns its URL.
func (c *Context) PublishedURL(ctx context.Context, dir string) (string, error) {
	if c.publisher == nil {
		return "", model.ConfigError("publish "+dir, errors.New("no publisher configured"))
	}
	return c.publisher.Publish(ctx, dir)
}
