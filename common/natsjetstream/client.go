package natsjetstream

import (
	"context"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	apperrors "github.com/Sakethtadimeti/checkin-app/common/errors"
	"github.com/Sakethtadimeti/checkin-app/common/logger"
)

type Client struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	cfg    *Config
	logger *logger.Logger
}

func NewClient(cfg *Config, log *logger.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.MaxReconnects(cfg.MaxReconnect),
		nats.ReconnectWait(cfg.ReconnectWait),
		nats.Timeout(cfg.Timeout),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			if err != nil {
				log.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("NATS reconnected", "url", nc.ConnectedUrl())
		}),
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "failed to connect to NATS")
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to create JetStream context")
	}

	return &Client{
		conn:   nc,
		js:     js,
		cfg:    cfg,
		logger: log,
	}, nil
}

// EnsureStream creates the stream or updates its subjects.
func (c *Client) EnsureStream(ctx context.Context, name string, subjects []string) error {
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     name,
		Subjects: subjects,
	})
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternalServer, "failed to ensure stream "+name)
	}

	c.logger.Info("JetStream stream ready", "stream", name, "subjects", subjects)
	return nil
}

// Close drains pending messages before closing the connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Drain()
}

func (c *Client) JetStream() jetstream.JetStream {
	return c.js
}

func (c *Client) Conn() *nats.Conn {
	return c.conn
}

func (c *Client) IsConnected() bool {
	return c.conn != nil && c.conn.IsConnected()
}
