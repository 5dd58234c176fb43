package logfields

import "go.uber.org/zap"

func Builder(val string) zap.Field {
	return zap.String("grid.builder", val)
}

func Build(val int) zap.Field {
	return zap.Int("grid.build", val)
}

func JobKey(val string) zap.Field {
	return zap.String("grid.job_key", val)
}

func Steps(val []string) zap.Field {
	return zap.Strings("grid.steps", val)
}

func Revision(val string) zap.Field {
	return zap.String("scm.revision", val)
}
