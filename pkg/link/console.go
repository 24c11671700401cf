package link

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"go.bug.st/serial"

	"github.com/itohio/feedflow/pkg/command"
)

// DefaultBaudRate is the console baud rate.
const DefaultBaudRate = 115200

// Port represents a serial port.
type Port struct {
	Name        string
	Description string
}

// Ports returns a list of available serial ports.
func Ports() ([]Port, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to list serial ports: %w", err)
	}

	result := make([]Port, 0, len(ports))
	for _, name := range ports {
		result = append(result, Port{
			Name:        name,
			Description: name,
		})
	}

	return result, nil
}

// Console is the local line-oriented command console. Every received line is
// pushed to the command queue with the console as its replier.
type Console struct {
	name   string
	r      io.Reader
	w      io.Writer
	closer io.Closer
	queue  *command.Queue

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	started bool
	done    chan struct{}
}

var _ command.Replier = (*Console)(nil)

// NewConsole creates a console over r and w. closer may be nil.
func NewConsole(name string, r io.Reader, w io.Writer, closer io.Closer, queue *command.Queue) *Console {
	ctx, cancel := context.WithCancel(context.Background())
	return &Console{
		name:   name,
		r:      r,
		w:      w,
		closer: closer,
		queue:  queue,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

// Stdio creates a console on the process stdin and stdout.
func Stdio(queue *command.Queue) *Console {
	return NewConsole("stdio", os.Stdin, os.Stdout, nil, queue)
}

// OpenSerial opens a serial port and creates a console on it.
func OpenSerial(port string, baudRate int, queue *command.Queue) (*Console, error) {
	if baudRate == 0 {
		baudRate = DefaultBaudRate
	}

	conn, err := serial.Open(port, &serial.Mode{BaudRate: baudRate})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}

	return NewConsole(port, conn, conn, conn, queue), nil
}

// Name returns the console name.
func (c *Console) Name() string {
	return c.name
}

// Start begins reading lines.
func (c *Console) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.started {
		return fmt.Errorf("already started")
	}
	c.started = true

	go c.readLines()

	return nil
}

// Done is closed when the reader stops.
func (c *Console) Done() <-chan struct{} {
	return c.done
}

// Close stops reading and closes the underlying port.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.cancel()
	if c.closer != nil {
		if err := c.closer.Close(); err != nil {
			return fmt.Errorf("failed to close %s: %w", c.name, err)
		}
		c.closer = nil
	}
	return nil
}

// Reply writes one line back to the console.
func (c *Console) Reply(msg string) error {
	return c.Send(msg)
}

// Send writes one line to the console.
func (c *Console) Send(msg string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := io.WriteString(c.w, msg+"\n"); err != nil {
		return fmt.Errorf("failed to write to %s: %w", c.name, err)
	}
	return nil
}

// readLines reads lines from the console and pushes them to the queue.
func (c *Console) readLines() {
	defer close(c.done)
	defer func() {
		if r := recover(); r != nil {
			log.Printf("Panic in console reader: %v", r)
		}
	}()

	scanner := bufio.NewScanner(c.r)
	for {
		select {
		case <-c.ctx.Done():
			return
		default:
			if !scanner.Scan() {
				if err := scanner.Err(); err != nil && err != io.EOF {
					log.Printf("Error reading from %s: %v", c.name, err)
				}
				return
			}

			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}

			c.queue.Push(command.Event{
				Kind:   command.EventLine,
				Source: c.name,
				Line:   line,
				Reply:  c,
			})
		}
	}
}
