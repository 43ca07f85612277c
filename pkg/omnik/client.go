package omnik

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultTCPPort = 8899
)

type Config struct {
	Host     string
	Port     uint
	Scheme   string
	Username string
	Password string
	Source   SourceType
	Timeout  time.Duration

	// TCP source
	TCPPort      uint
	SerialNumber uint32

	// HTTPClient is optional. When set, its connection pool is shared with the caller.
	HTTPClient *http.Client
}

// Client polls a single Omnik inverter. Every Fetch is one round-trip.
type Client struct {
	cfg        Config
	httpClient *http.Client
	ownsPool   bool
	dialer     *net.Dialer
	instrument []Instrument
	logger     *zap.Logger
}

func NewClient(cfg Config, logger *zap.Logger, instrumentation *Instrument) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if strings.TrimSpace(cfg.Host) == "" {
		return nil, fmt.Errorf("%w: host is required", ErrInvalidConfig)
	}
	source, err := ParseSourceType(string(cfg.Source))
	if err != nil {
		return nil, err
	}
	cfg.Source = source

	switch cfg.Scheme {
	case "":
		cfg.Scheme = "http"
	case "http", "https":
	default:
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidConfig, cfg.Scheme)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.TCPPort == 0 {
		cfg.TCPPort = DefaultTCPPort
	}

	if cfg.Source == SourceHTML && (cfg.Username == "" || cfg.Password == "") {
		return nil, ErrAuth
	}
	if cfg.Source == SourceTCP && cfg.SerialNumber == 0 {
		return nil, fmt.Errorf("%w: serial_number is required for the tcp source", ErrInvalidConfig)
	}

	// instrumentation
	var inst []Instrument
	logInst := debugLoggerInstrumentation(logger.With(zap.String("target", "inverter"), zap.String("host", cfg.Host)))
	if logInst != nil {
		inst = append(inst, *logInst)
	}
	if instrumentation != nil {
		inst = append(inst, *instrumentation)
	}

	client := &Client{
		cfg:        cfg,
		httpClient: cfg.HTTPClient,
		dialer:     &net.Dialer{},
		instrument: inst,
		logger:     logger,
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{}
		client.ownsPool = true
	}
	return client, nil
}

func (c *Client) Source() SourceType {
	return c.cfg.Source
}

// Fetch performs one poll and returns a fully populated Reading.
func (c *Client) Fetch(ctx context.Context) (reading *Reading, err error) {
	defer func() { recordResult(c.cfg.Source, err, c.instrument) }()

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	switch c.cfg.Source {
	case SourceJSON:
		body, err := c.request(ctx, "status.json", url.Values{"CMD": {"inv_query"}})
		if err != nil {
			return nil, err
		}
		return ParseJSON(body)
	case SourceHTML:
		body, err := c.request(ctx, "status.html", nil)
		if err != nil {
			return nil, err
		}
		return ParseHTML(body)
	case SourceJavascript:
		body, err := c.request(ctx, "js/status.js", nil)
		if err != nil {
			return nil, err
		}
		return ParseJS(body)
	case SourceTCP:
		payload, err := c.tcpRequest(ctx)
		if err != nil {
			return nil, err
		}
		return ParseTCP(payload, c.logger)
	}
	return nil, fmt.Errorf("%w: unknown source type %q", ErrInvalidConfig, c.cfg.Source)
}

func (c *Client) Inverter(ctx context.Context) (*Inverter, error) {
	reading, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return &reading.Inverter, nil
}

func (c *Client) Device(ctx context.Context) (*Device, error) {
	reading, err := c.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	return &reading.Device, nil
}

// Close releases idle pooled connections owned by the client.
func (c *Client) Close() error {
	if c.ownsPool {
		c.httpClient.CloseIdleConnections()
	}
	return nil
}

func (c *Client) httpHost() string {
	if c.cfg.Port > 0 {
		return net.JoinHostPort(c.hostname(), strconv.FormatUint(uint64(c.cfg.Port), 10))
	}
	return c.cfg.Host
}

func (c *Client) tcpAddress() string {
	return net.JoinHostPort(c.hostname(), strconv.FormatUint(uint64(c.cfg.TCPPort), 10))
}

func (c *Client) hostname() string {
	if h, _, err := net.SplitHostPort(c.cfg.Host); err == nil {
		return h
	}
	return strings.Trim(c.cfg.Host, "[]")
}

func connectionErr(err error) error {
	return fmt.Errorf("%w: %w", ErrConnection, err)
}

// ensure interface compliance
var _ Reader = (*Client)(nil)
