package bridge

import (
	"encoding/json"

	"github.com/rs/zerolog"
	"github.com/viant/mcp-bridge/message"
	"github.com/viant/mcp-bridge/schema"
	protoschema "github.com/viant/mcp-protocol/schema"
)

// relayLogMessage writes a subprocess notifications/message into the bridge log.
// It returns false when msg is not a log notification.
func relayLogMessage(logger zerolog.Logger, msg *message.Message) bool {
	if msg.Kind != message.KindNotification || msg.Method != schema.MethodNotificationMessage {
		return false
	}
	params := protoschema.LoggingMessageNotificationParams{}
	if err := json.Unmarshal(msg.Params, &params); err != nil {
		logger.Warn().Err(err).RawJSON("message", msg.Raw).Msg("invalid log notification from subprocess")
		return true
	}
	event := logger.WithLevel(logLevel(params.Level)).Str("source", "subprocess")
	if params.Logger != nil {
		event = event.Str("logger", *params.Logger)
	}
	if data, err := json.Marshal(params.Data); err == nil {
		event = event.RawJSON("data", data)
	}
	event.Msg("subprocess log")
	return true
}

func logLevel(level protoschema.LoggingLevel) zerolog.Level {
	switch level {
	case protoschema.LoggingLevelDebug:
		return zerolog.DebugLevel
	case protoschema.Info, protoschema.Notice:
		return zerolog.InfoLevel
	case protoschema.Warning:
		return zerolog.WarnLevel
	default:
		return zerolog.ErrorLevel
	}
}
