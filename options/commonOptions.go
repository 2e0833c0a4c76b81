package options

import (
	"context"

	"github.com/coapclient/go-coap/net/blockwise"
	"github.com/coapclient/go-coap/options/config"
	"github.com/coapclient/go-coap/pkg/rand"
	"github.com/coapclient/go-coap/pkg/runner/periodic"
	udpClient "github.com/coapclient/go-coap/udp/client"
	"github.com/rs/zerolog"
)

type ErrorFunc = config.ErrorFunc

// ContextOpt handler function option.
type ContextOpt struct {
	ctx context.Context
}

func (o ContextOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Ctx = o.ctx
}

// WithContext set's parent context of the client; the client closes when it is done.
func WithContext(ctx context.Context) ContextOpt {
	return ContextOpt{ctx: ctx}
}

// MaxMessageSizeOpt handler function option.
type MaxMessageSizeOpt struct {
	maxMessageSize uint32
}

func (o MaxMessageSizeOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.MaxMessageSize = o.maxMessageSize
}

// WithMaxMessageSize limit size of processed message.
func WithMaxMessageSize(maxMessageSize uint32) MaxMessageSizeOpt {
	return MaxMessageSizeOpt{maxMessageSize: maxMessageSize}
}

// ErrorsOpt errors option.
type ErrorsOpt struct {
	errors ErrorFunc
}

func (o ErrorsOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Errors = o.errors
}

// WithErrors set function for logging error.
func WithErrors(errors ErrorFunc) ErrorsOpt {
	return ErrorsOpt{errors: errors}
}

type LoggerOpt struct {
	logger zerolog.Logger
}

func (o LoggerOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Logger = o.logger
}

// WithLogger sets the logger of the client. The default discards everything.
func WithLogger(logger zerolog.Logger) LoggerOpt {
	return LoggerOpt{logger: logger}
}

// PeriodicRunnerOpt function which is executed in every ticks
type PeriodicRunnerOpt struct {
	periodicRunner periodic.Func
}

func (o PeriodicRunnerOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.PeriodicRunner = o.periodicRunner
}

// WithPeriodicRunner set function which is executed in every ticks.
func WithPeriodicRunner(periodicRunner periodic.Func) PeriodicRunnerOpt {
	return PeriodicRunnerOpt{periodicRunner: periodicRunner}
}

// BlockwiseOpt network option.
type BlockwiseOpt struct {
	enable bool
	szx    blockwise.SZX
}

func (o BlockwiseOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.BlockwiseEnable = o.enable
	cfg.BlockwiseSZX = o.szx
}

// WithBlockwise configure's blockwise transfer.
func WithBlockwise(enable bool, szx blockwise.SZX) BlockwiseOpt {
	return BlockwiseOpt{
		enable: enable,
		szx:    szx,
	}
}

type RandOpt struct {
	rand *rand.Rand
}

func (o RandOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.Rand = o.rand
}

// WithRand sets the source of tokens, message ids and retransmission jitter.
func WithRand(r *rand.Rand) RandOpt {
	return RandOpt{rand: r}
}

type LimitClientParallelRequestOpt struct {
	limitClientParallelRequests int64
}

func (o LimitClientParallelRequestOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.LimitClientParallelRequests = o.limitClientParallelRequests
}

// WithLimitClientParallelRequest limits number of parallel requests from client. (default: 0, unlimited)
func WithLimitClientParallelRequest(limitClientParallelRequests int64) LimitClientParallelRequestOpt {
	return LimitClientParallelRequestOpt{limitClientParallelRequests: limitClientParallelRequests}
}

type LimitClientEndpointParallelRequestOpt struct {
	limitClientEndpointParallelRequests int64
}

func (o LimitClientEndpointParallelRequestOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.LimitClientEndpointParallelRequests = o.limitClientEndpointParallelRequests
}

// WithLimitClientEndpointParallelRequest limits number of parallel requests to endpoint by client. (default: 0, unlimited)
func WithLimitClientEndpointParallelRequest(limitClientEndpointParallelRequests int64) LimitClientEndpointParallelRequestOpt {
	return LimitClientEndpointParallelRequestOpt{limitClientEndpointParallelRequests: limitClientEndpointParallelRequests}
}

type QueueSizeOpt struct {
	queueSize int
}

func (o QueueSizeOpt) UDPClientApply(cfg *udpClient.Config) {
	cfg.QueueSize = o.queueSize
}

// WithQueueSize sets the capacity of the engine work queue.
func WithQueueSize(queueSize int) QueueSizeOpt {
	return QueueSizeOpt{queueSize: queueSize}
}
