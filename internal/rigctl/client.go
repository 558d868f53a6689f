package rigctl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DefaultTimeout bounds every command/reply round trip.
const DefaultTimeout = 5 * time.Second

// Reply grammars, one per command. A reply that does not match the
// grammar of the command that produced it is rejected rather than
// partially parsed.
var (
	ackReply   = regexp.MustCompile(`^RPRT -?\d+$`)
	levelReply = regexp.MustCompile(`^-?\d+(?:\.\d+)?$`)
	freqReply  = regexp.MustCompile(`^\d{7,10}$`)
)

// WithTimeout sets the per-command reply timeout.
func WithTimeout(d time.Duration) func(c *Client) {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithLogger sets the logger for the client.
func WithLogger(logger *slog.Logger) func(c *Client) {
	return func(c *Client) {
		c.logger = logger.With(slog.String("component", "rigctl"))
	}
}

// Client is a request/response client for a remotely controllable
// receiver. It is not safe for concurrent use; the scan loop is the
// single caller.
type Client struct {
	conn    net.Conn
	reader  *bufio.Reader
	timeout time.Duration
	logger  *slog.Logger
	closed  bool
}

// Dial connects to the receiver's remote control port. A failure here
// is fatal to the caller; there is no reconnection logic.
func Dial(addr string, options ...func(c *Client)) (*Client, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("connecting to receiver at %s: %w", addr, err)
	}

	c := Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		timeout: DefaultTimeout,
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, option := range options {
		option(&c)
	}

	return &c, nil
}

// SetFrequency tunes the receiver to hz. Tuning is best effort: a
// timeout is reported as ErrTimeout and the caller may proceed.
func (c *Client) SetFrequency(hz int64) error {
	return c.ack(fmt.Sprintf("F %d", hz))
}

// SetMode selects the demodulation mode, e.g. "USB".
func (c *Client) SetMode(mode string) error {
	return c.ack(fmt.Sprintf("M %s", mode))
}

// QueryLevel reads the current signal level in dBFS-like units.
func (c *Client) QueryLevel() (float64, error) {
	reply, err := c.roundTrip("l")
	if err != nil {
		return 0, err
	}
	if !levelReply.MatchString(reply) {
		return 0, fmt.Errorf("%w: level %q", ErrMalformedReply, reply)
	}

	level, err := strconv.ParseFloat(reply, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: level %q", ErrMalformedReply, reply)
	}
	return level, nil
}

// QueryFrequency reads the receiver's currently tuned frequency in Hz.
func (c *Client) QueryFrequency() (int64, error) {
	reply, err := c.roundTrip("f")
	if err != nil {
		return 0, err
	}
	if !freqReply.MatchString(reply) {
		return 0, fmt.Errorf("%w: frequency %q", ErrMalformedReply, reply)
	}

	hz, err := strconv.ParseInt(reply, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: frequency %q", ErrMalformedReply, reply)
	}
	return hz, nil
}

// StartRecording asks the receiver to begin recording the current channel.
func (c *Client) StartRecording() error {
	return c.ack("AOS")
}

// StopRecording asks the receiver to end the current recording.
func (c *Client) StopRecording() error {
	return c.ack("LOS")
}

// Close closes the control connection. Commands issued afterwards
// return ErrClosed.
func (c *Client) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	return c.conn.Close()
}

func (c *Client) ack(cmd string) error {
	reply, err := c.roundTrip(cmd)
	if err != nil {
		return err
	}
	if !ackReply.MatchString(reply) {
		return fmt.Errorf("%w: ack %q", ErrMalformedReply, reply)
	}
	return nil
}

func (c *Client) roundTrip(cmd string) (string, error) {
	if c.closed {
		return "", ErrClosed
	}

	c.logger.Debug("send", slog.String("cmd", cmd))

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", fmt.Errorf("setting write deadline: %w", err)
	}
	if _, err := fmt.Fprintf(c.conn, "%s\n", cmd); err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("sending %q: %w", cmd, err)
	}

	if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
		return "", fmt.Errorf("setting read deadline: %w", err)
	}
	line, err := c.reader.ReadString('\n')
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return "", ErrTimeout
		}
		return "", fmt.Errorf("reading reply to %q: %w", cmd, err)
	}

	reply := strings.TrimSpace(line)
	c.logger.Debug("recv", slog.String("reply", reply))

	return reply, nil
}
