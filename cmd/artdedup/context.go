package main

import (
	"fmt"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"artdedup/internal/access"
	"artdedup/internal/apiclient"
	"artdedup/internal/config"
	"artdedup/internal/daemonrun"
	"artdedup/internal/logging"
)

type globalOptions struct {
	configPath string
	daemonAddr string
	token      string
	local      bool
	json       bool
}

type commandContext struct {
	opts *globalOptions

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(opts *globalOptions) *commandContext {
	return &commandContext{opts: opts}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.opts.configPath))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) jsonOutput() bool {
	return c.opts != nil && c.opts.json
}

func (c *commandContext) daemonAddress(cfg *config.Config) string {
	if addr := strings.TrimSpace(c.opts.daemonAddr); addr != "" {
		return addr
	}
	return strings.TrimSpace(cfg.Paths.APIBind)
}

func (c *commandContext) daemonToken(cfg *config.Config) string {
	if token := strings.TrimSpace(c.opts.token); token != "" {
		return token
	}
	return strings.TrimSpace(cfg.Paths.APIToken)
}

// withAccess runs fn against the daemon when one answers, otherwise against
// an in-process service opened on the catalog database.
func (c *commandContext) withAccess(cmd *cobra.Command, fn func(access.Access) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	var dial func() (*apiclient.Client, error)
	if !c.opts.local && c.daemonAddress(cfg) != "" {
		dial = func() (*apiclient.Client, error) {
			return apiclient.Dial(cmd.Context(), c.daemonAddress(cfg), c.daemonToken(cfg))
		}
	}
	session, err := access.OpenWithFallback(dial, func() (access.Session, error) {
		stack, err := c.openStack()
		if err != nil {
			return access.Session{}, err
		}
		return access.Local(stack.Service, stack.Close), nil
	})
	if err != nil {
		return err
	}
	defer session.Close()
	return fn(session.Access)
}

// withStack opens the catalog directly for operations the daemon API does
// not expose.
func (c *commandContext) withStack(fn func(*daemonrun.Stack) error) error {
	stack, err := c.openStack()
	if err != nil {
		return err
	}
	defer stack.Close()
	return fn(stack)
}

func (c *commandContext) openStack() (*daemonrun.Stack, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFileOnly(cfg)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return daemonrun.OpenStack(cfg, logger)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
