package natsrpc

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"exchange/service"
)

// Server answers named commands published as NATS requests. Request and
// reply bodies are service.Command and service.Reply in JSON.
type Server struct {
	nc      *nats.Conn
	ex      *service.Exchange
	subject string
	queue   string
	sub     *nats.Subscription
	log     *zap.Logger
}

func NewServer(nc *nats.Conn, ex *service.Exchange, subject, queue string, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		nc:      nc,
		ex:      ex,
		subject: subject,
		queue:   queue,
		log:     logger.Named("natsrpc"),
	}
}

func (s *Server) Start() error {
	sub, err := s.nc.QueueSubscribe(s.subject, s.queue, s.onMsg)
	if err != nil {
		return fmt.Errorf("natsrpc: subscribe %s: %w", s.subject, err)
	}
	s.sub = sub
	s.log.Info("listening", zap.String("subject", s.subject), zap.String("queue", s.queue))
	return nil
}

// Stop drains in-flight requests and waits until the subscription is
// closed or ctx is done.
func (s *Server) Stop(ctx context.Context) error {
	if s.sub == nil {
		return nil
	}
	if err := s.sub.Drain(); err != nil {
		return fmt.Errorf("natsrpc: drain %s: %w", s.subject, err)
	}

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for s.sub.IsValid() {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	s.log.Info("drained", zap.String("subject", s.subject))
	return nil
}

func (s *Server) onMsg(m *nats.Msg) {
	reply := s.Handle(m.Data)
	if m.Reply == "" {
		return
	}
	if err := m.Respond(reply); err != nil {
		s.log.Warn("respond failed", zap.Error(err))
	}
}

// Handle decodes one request body and returns the encoded reply.
func (s *Server) Handle(data []byte) []byte {
	var cmd service.Command
	var reply service.Reply
	if err := json.Unmarshal(data, &cmd); err != nil {
		reply = service.Reply{
			Error:        service.ErrorCode(service.ErrBadRequest),
			ErrorMessage: fmt.Sprintf("%v: %v", service.ErrBadRequest, err),
		}
	} else {
		reply = s.ex.Dispatch(cmd)
	}

	out, err := json.Marshal(reply)
	if err != nil {
		s.log.Error("encode reply", zap.String("command", cmd.CommandName), zap.Error(err))
		out, _ = json.Marshal(service.Reply{Error: "internal", ErrorMessage: err.Error()})
	}
	return out
}
