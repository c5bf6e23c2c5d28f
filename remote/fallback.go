package remote

import (
	errs "attraction-map/utils/errors"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// failurePolicy says, per failure kind, whether a degrading operation swallows the
// error and how loudly it is logged. Every kind degrades; none reaches the caller.
var failurePolicy = map[errs.Kind]zapcore.Level{
	errs.KindTransport:  zapcore.WarnLevel,
	errs.KindHTTP:       zapcore.InfoLevel,
	errs.KindDecode:     zapcore.ErrorLevel,
	errs.KindValidation: zapcore.InfoLevel,
	errs.KindNotFound:   zapcore.DebugLevel,
}

// fallback logs err according to failurePolicy and returns def, the operation's
// "no data" value.
func fallback[T any](c *Client, op string, def T, err error) T {
	kind := errs.KindOf(err)
	lvl, ok := failurePolicy[kind]
	if !ok {
		lvl = zapcore.ErrorLevel
	}
	if ce := c.logger.Check(lvl, "record service call degraded"); ce != nil {
		ce.Write(zap.String("op", op), zap.Stringer("kind", kind), zap.Error(err))
	}
	return def
}
