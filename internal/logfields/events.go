package logfields

import "go.uber.org/zap"

func Event(val string) zap.Field {
	return zap.String("event", val)
}

func Verifier(val string) zap.Field {
	return zap.String("cq.verifier", val)
}

func VerificationState(val string) zap.Field {
	return zap.String("cq.verification_state", val)
}
