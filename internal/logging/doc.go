// Package logging wraps zap with context-aware, redacting structured logging.
//
// Every log call made through Logger picks up correlation fields from the
// context: the active OpenTelemetry trace and span, the interaction being
// processed, the caller's session and the HTTP request id.
//
//	logger, err := logging.NewLogger(logging.NewDefaultConfig(), nil)
//	ctx = logging.WithInteractionID(ctx, interaction.ID)
//	logger.Info(ctx, "interaction processed", zap.Int("insights", n))
//
// Domain packages accept a plain *zap.Logger; use Logger.Underlying to hand
// one over.
package logging
