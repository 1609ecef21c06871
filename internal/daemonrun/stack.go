package daemonrun

import (
	"errors"
	"fmt"
	"log/slog"

	"artdedup/internal/api"
	"artdedup/internal/config"
	"artdedup/internal/merge"
	"artdedup/internal/resolution"
	"artdedup/internal/scanner"
	"artdedup/internal/store"
)

// Stack bundles the in-process services over one catalog database.
type Stack struct {
	Store    *store.Store
	Scanner  *scanner.Scanner
	Merger   *merge.Engine
	Resolver *resolution.Resolver
	Service  *api.Service
}

// OpenStack opens the catalog database and wires the dedup services on top.
func OpenStack(cfg *config.Config, logger *slog.Logger) (*Stack, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	st, err := store.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open catalog store: %w", err)
	}
	sc, err := scanner.New(cfg, st, logger)
	if err != nil {
		_ = st.Close()
		return nil, fmt.Errorf("create scanner: %w", err)
	}
	engine := merge.New(st, logger)
	resolver := resolution.New(st, engine, logger)
	return &Stack{
		Store:    st,
		Scanner:  sc,
		Merger:   engine,
		Resolver: resolver,
		Service:  api.NewService(st, sc, resolver, engine),
	}, nil
}

// Close cancels running scans and closes the database.
func (s *Stack) Close() error {
	if s == nil {
		return nil
	}
	s.Scanner.Close()
	return s.Store.Close()
}
