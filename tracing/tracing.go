package tracing

import (
	"fmt"
	"io"

	"github.com/opentracing/opentracing-go"
	"github.com/uber/jaeger-client-go"
	jaegercfg "github.com/uber/jaeger-client-go/config"
	"github.com/uber/jaeger-lib/metrics/prometheus"
	"go.uber.org/zap"
)

// Start configures the global opentracing tracer from the JAEGER_* env vars
func Start(logger *zap.Logger) (io.Closer, error) {
	cfg, err := jaegercfg.FromEnv()

	if err != nil {
		return nil, fmt.Errorf("could not parse Jaeger env vars: %s", err)
	}

	tracer, closer, err := cfg.NewTracer(
		jaegercfg.Logger(&logAdapter{logger}),
		jaegercfg.Metrics(prometheus.New()),
	)

	if err != nil {
		return nil, fmt.Errorf("could not initialize jaeger tracer: %s", err)
	}

	opentracing.SetGlobalTracer(tracer)

	return closer, nil
}

var _ jaeger.Logger = (*logAdapter)(nil)

type logAdapter struct {
	*zap.Logger
}

func (log *logAdapter) Infof(str string, args ...interface{}) {
	log.Logger.Info(fmt.Sprintf(str, args...))
}

func (log *logAdapter) Error(msg string) {
	log.Logger.Error(msg)
}
