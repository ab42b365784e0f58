package tele

import (
	"context"

	"github.com/temoto/zeos/internal/config"
	"github.com/temoto/zeos/log2"
)

// Tele transport contract:
// - Init fails only with invalid config, ignores network errors
// - Send* return false when message was not delivered and must be retried
// - application may start without network available
type Transporter interface {
	Init(ctx context.Context, log *log2.Log, teleConfig config.TeleConfig, onCommand CommandCallback) error
	SendState(payload []byte) bool
	SendTelemetry(payload []byte) bool
	SendCommandResponse(payload []byte) bool
	Close()
}

type CommandCallback func(context.Context, []byte) bool
