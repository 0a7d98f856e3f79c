package utils

// LoggerInitializationFailedMessageFormat is used when the zap logger cannot be constructed.
const LoggerInitializationFailedMessageFormat = "failed to initialize logger: %w"

// ApplicationExecutionFailedMessage prefixes fatal command errors.
const ApplicationExecutionFailedMessage = "unveil failed"
