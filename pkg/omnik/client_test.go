package omnik

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) Config {
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	u, err := url.Parse(srv.URL)
	require.NoError(t, err)
	return Config{Host: u.Host}
}

func serveBody(contentType, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = io.WriteString(w, body)
	}
}

func TestNewClientValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		err  error
	}{
		{"missing host", Config{}, ErrInvalidConfig},
		{"unknown source", Config{Host: "inverter", Source: "xml"}, ErrInvalidConfig},
		{"unknown scheme", Config{Host: "inverter", Scheme: "ftp"}, ErrInvalidConfig},
		{"html without credentials", Config{Host: "inverter", Source: SourceHTML, Username: "admin"}, ErrAuth},
		{"tcp without serial", Config{Host: "inverter", Source: SourceTCP}, ErrInvalidConfig},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewClient(tt.cfg, zap.NewNop(), nil)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	client, err := NewClient(Config{Host: "inverter"}, nil, nil)
	require.NoError(t, err)
	defer client.Close()

	assert.Equal(t, SourceJavascript, client.Source())
	assert.Equal(t, DefaultTimeout, client.cfg.Timeout)
	assert.Equal(t, "inverter:8899", client.tcpAddress())
	assert.Equal(t, "inverter", client.httpHost())
}

func TestFetchSources(t *testing.T) {
	tests := []struct {
		source      SourceType
		path        string
		contentType string
		body        string
	}{
		{SourceJSON, "/status.json", "application/json", jsonBody},
		{SourceHTML, "/status.html", "text/html; charset=utf-8", htmlBody},
		{SourceJavascript, "/js/status.js", "application/x-javascript", jsBody},
	}
	for _, tt := range tests {
		t.Run(string(tt.source), func(t *testing.T) {
			cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.path, r.URL.Path)
				assert.Equal(t, acceptHeader, r.Header.Get("Accept"))
				if tt.source == SourceJSON {
					assert.Equal(t, "inv_query", r.URL.Query().Get("CMD"))
				}
				if tt.source == SourceHTML {
					user, pass, ok := r.BasicAuth()
					assert.True(t, ok)
					assert.Equal(t, "admin", user)
					assert.Equal(t, "secret", pass)
				}
				serveBody(tt.contentType, tt.body)(w, r)
			})
			cfg.Source = tt.source
			cfg.Username = "admin"
			cfg.Password = "secret"

			client, err := NewClient(cfg, zap.NewNop(), nil)
			require.NoError(t, err)
			defer client.Close()

			reading, err := client.Fetch(context.Background())
			require.NoError(t, err)
			assert.Equal(t, tt.source, reading.Source)
			assertSampleInverter(t, reading.Inverter)

			// no state is kept between fetches
			again, err := client.Fetch(context.Background())
			require.NoError(t, err)
			assert.Equal(t, reading, again)
		})
	}
}

func TestFetchInverterAndDevice(t *testing.T) {
	cfg := newTestServer(t, serveBody("application/x-javascript", jsBody))
	client, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	inv, err := client.Inverter(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "NLDN302013518090", inv.SerialNumber)

	dev, err := client.Device(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "H4.01.38Y1.0.09W1.0.08", dev.Firmware)
}

func TestFetchStatusError(t *testing.T) {
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
	})
	client, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.ErrorIs(t, err, ErrProtocol)
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, http.StatusUnauthorized, perr.StatusCode)
	assert.Contains(t, err.Error(), "401")
}

func TestFetchUnexpectedContentType(t *testing.T) {
	cfg := newTestServer(t, serveBody("image/png", "png"))
	client, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "image/png", perr.ContentType)
}

func TestFetchParseError(t *testing.T) {
	cfg := newTestServer(t, serveBody("application/json", `{"i_sn":"NLDN302013518090"}`))
	cfg.Source = SourceJSON
	client, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrParse)
}

func TestFetchTimeout(t *testing.T) {
	cfg := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	})
	cfg.Timeout = 200 * time.Millisecond
	client, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestFetchCancelled(t *testing.T) {
	cfg := newTestServer(t, serveBody("application/x-javascript", jsBody))
	client, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = client.Fetch(ctx)
	assert.ErrorIs(t, err, ErrConnection)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchConnectionRefused(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	client, err := NewClient(Config{Host: addr}, zap.NewNop(), nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
}

func TestFetchInstrumentation(t *testing.T) {
	cfg := newTestServer(t, serveBody("application/x-javascript", jsBody))

	var timed, results, failures atomic.Int32
	client, err := NewClient(cfg, zap.NewNop(), &Instrument{
		RecordTime: func(fnName string, _ time.Duration) {
			assert.Equal(t, "HTTPRequest", fnName)
			timed.Add(1)
		},
		RecordResult: func(source SourceType, err error) {
			results.Add(1)
			if err != nil {
				failures.Add(1)
			}
		},
	})
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), timed.Load())
	assert.Equal(t, int32(1), results.Load())
	assert.Equal(t, int32(0), failures.Load())
}

// serveTCP answers every connection with the given frames.
func serveTCP(t *testing.T, frames ...[]byte) Config {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })

	go func() {
		for {
			conn, err := l.Accept()
			if err != nil {
				return
			}
			go func(conn net.Conn) {
				defer conn.Close()
				req := make([]byte, 16)
				if _, err := io.ReadFull(conn, req); err != nil {
					return
				}
				if frames == nil {
					// hang until the client gives up
					_, _ = io.Copy(io.Discard, conn)
					return
				}
				for _, f := range frames {
					_, _ = conn.Write(f)
				}
			}(conn)
		}
	}()

	host, port, err := net.SplitHostPort(l.Addr().String())
	require.NoError(t, err)
	p, err := strconv.Atoi(port)
	require.NoError(t, err)
	return Config{Host: host, Source: SourceTCP, TCPPort: uint(p), SerialNumber: testSerial}
}

func TestFetchTCP(t *testing.T) {
	info := encodeInformationReply(t, sampleInformationReply())
	cfg := serveTCP(t,
		replyFrame(messageTypeString, testSerial, []byte("hello")),
		replyFrame(messageTypeInformationReply, testSerial, info),
	)
	client, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	reading, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SourceTCP, reading.Source)
	assert.Equal(t, "NLDN302013518090", reading.Inverter.SerialNumber)
	assert.Equal(t, uint32(1225), reading.Inverter.CurrentPowerWatt)

	again, err := client.Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, reading, again)
}

func TestFetchTCPCorruptFrame(t *testing.T) {
	frame := replyFrame(messageTypeInformationReply, testSerial, encodeInformationReply(t, sampleInformationReply()))
	frame[len(frame)-2] ^= 0xFF
	cfg := serveTCP(t, frame)
	client, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	_, err = client.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrParse)
}

func TestFetchTCPTimeout(t *testing.T) {
	cfg := serveTCP(t)
	cfg.Timeout = 200 * time.Millisecond
	client, err := NewClient(cfg, zap.NewNop(), nil)
	require.NoError(t, err)

	start := time.Now()
	_, err = client.Fetch(context.Background())
	assert.ErrorIs(t, err, ErrConnection)
	assert.Less(t, time.Since(start), 2*time.Second)
}
