package orchestrator

import "go.uber.org/zap/zapcore"

// Recognition failure subcodes meaning the caller stayed silent: initial
// silence and inter-digit silence.
var recognizeTimeoutSubCodes = map[int]bool{
	8510: true,
	8532: true,
}

// subCodePromptPlayFailed is a recognition failure caused by its prompt.
const subCodePromptPlayFailed = 8511

type playFailure struct {
	level   zapcore.Level
	message string
}

var playFailures = map[int]playFailure{
	8535: {zapcore.WarnLevel, "Error during media play, file format is invalid"},
	8536: {zapcore.WarnLevel, "Error during media play, file could not be downloaded"},
	8565: {zapcore.ErrorLevel, "Error during media play, impossible to connect with AI services"},
	9999: {zapcore.WarnLevel, "Error during media play, unknown internal server error"},
}

var unknownPlayFailure = playFailure{zapcore.WarnLevel, "Error during media play, unknown error code"}

func classifyPlayFailure(subCode int) playFailure {
	if f, ok := playFailures[subCode]; ok {
		return f
	}
	return unknownPlayFailure
}

func isRecognizeTimeout(ev Event) bool {
	return recognizeTimeoutSubCodes[ev.SubCode]
}
