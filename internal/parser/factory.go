package parser

import (
	"github.com/kilebles/ozon-parser/internal/app"
)

// New builds the backend selected by the config. All three share the same
// contract and can be swapped through PARSER_BACKEND alone.
func New(cfg *app.Config, solver Solver) (Backend, error) {
	switch cfg.Backend {
	case "static":
		return NewStatic(cfg), nil
	case "hybrid":
		return NewHybrid(cfg, solver)
	default:
		return NewChrome(cfg, solver)
	}
}
