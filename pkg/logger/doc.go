// Package logger standardises structured logging across the toolkit on top
// of log/slog.
//
// New builds a *slog.Logger from functional options (format, level, output,
// source annotation, default attributes); NewFromConfig does the same from an
// env-driven Config struct. Helper constructors in attr.go return
// commonly-used slog.Attr values (Error, UserID, NotificationID, Component,
// ...) to keep attribute naming consistent across packages.
//
// # Usage
//
//	log := logger.New(
//	    logger.WithFormat(logger.FormatJSON),
//	    logger.WithLevel(slog.LevelInfo),
//	)
//	log.Info("Notification stored", logger.UserID(userID))
package logger
