package logfields

import "go.uber.org/zap"

func Issue(val int) zap.Field {
	return zap.Int("cq.issue", val)
}

func Patchset(val int) zap.Field {
	return zap.Int("cq.patchset", val)
}

func Owner(val string) zap.Field {
	return zap.String("cq.owner", val)
}

func ReviewURL(val string) zap.Field {
	return zap.String("cq.review_url", val)
}
