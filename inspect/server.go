// Package inspect exposes a small read-only HTTP introspection server
// over a loaded module and a running machine: an HTTP read-model over
// otherwise-opaque binary state.
package inspect

import (
	"net/http"

	"github.com/joek13/hissvm/machine"
	"github.com/joek13/hissvm/module"
	"github.com/joek13/hissvm/value"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

// ServerConfig configures a Server using the usual
// config-struct-plus-logger idiom.
type ServerConfig struct {
	ListenerAddr string
	Logger       *zap.Logger
}

// Server serves introspection endpoints over a single module and,
// optionally, a machine executing it.
type Server struct {
	ServerConfig

	mod *module.Module
	m   *machine.Machine

	logger *zap.Logger
}

// NewServer constructs a Server over mod. m may be nil if no machine is
// running yet; GET /frames reports an empty list in that case.
func NewServer(config ServerConfig, mod *module.Module, m *machine.Machine) (*Server, error) {
	if config.Logger == nil {
		config.Logger, _ = zap.NewDevelopment()
	}
	s := &Server{
		ServerConfig: config,
		mod:          mod,
		m:            m,
		logger:       config.Logger.Named("inspect"),
	}
	return s, nil
}

// Start blocks serving the introspection routes on ListenerAddr.
func (s *Server) Start() error {
	s.logger.Info("inspect server starting",
		zap.String("addr", s.ListenerAddr))
	echoer := echo.New()
	echoer.HideBanner = true

	echoer.GET("/constants", s.handleConstants)
	echoer.GET("/disasm", s.handleDisasm)
	echoer.GET("/frames", s.handleFrames)

	return echoer.Start(s.ListenerAddr)
}

func (s *Server) handleConstants(ectx echo.Context) error {
	out := make([]map[string]any, 0, len(s.mod.Constants))
	for i, c := range s.mod.Constants {
		entry := map[string]any{
			"index": i,
			"type":  c.Type.String(),
		}
		switch c.Type {
		case value.TypeInt:
			entry["int"] = c.Int
		case value.TypeFunc:
			entry["offset"] = c.Func.Offset
			entry["arity"] = c.Func.Arity
		}
		out = append(out, entry)
	}
	return ectx.JSON(http.StatusOK, map[string]any{"constants": out})
}

func (s *Server) handleDisasm(ectx echo.Context) error {
	instrs, err := machine.Disassemble(s.mod.Code)
	if err != nil {
		return ectx.JSON(http.StatusInternalServerError, map[string]any{
			"error": err.Error(),
		})
	}
	lines := make([]string, 0, len(instrs))
	for _, in := range instrs {
		lines = append(lines, in.String())
	}
	return ectx.JSON(http.StatusOK, map[string]any{"disasm": lines})
}

func (s *Server) handleFrames(ectx echo.Context) error {
	if s.m == nil {
		return ectx.JSON(http.StatusOK, map[string]any{"frames": []any{}, "pc": 0})
	}
	frames := s.m.Frames()
	out := make([]map[string]any, 0, len(frames))
	for _, f := range frames {
		out = append(out, map[string]any{
			"fp":       f.FP,
			"ret_addr": f.RetAddr,
			"arity":    f.Func.Arity,
			"offset":   f.Func.Offset,
		})
	}
	return ectx.JSON(http.StatusOK, map[string]any{
		"frames": out,
		"pc":     s.m.PC(),
	})
}
