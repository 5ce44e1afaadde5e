package zap

import (
	"go.uber.org/zap"

	"github.com/unkn0wn-root/querycache"
)

var _ querycache.Logger = Logger{}

// Logger adapts a *zap.Logger. Fields become zap.Any pairs.
type Logger struct{ L *zap.Logger }

func (z Logger) Debug(msg string, f querycache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f querycache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f querycache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f querycache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f querycache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
