package link

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/transport/v3/test"
)

const (
	// MaxValueSize is the largest value a pipe carries in one write.
	MaxValueSize = 512

	// headerSize is the characteristic prefix of every packet.
	headerSize = 1

	// queueDepth is the number of undelivered values kept per characteristic.
	queueDepth = 16
)

// PipeConfig configures a Pipe.
type PipeConfig struct {
	// AutoProcess enables automatic packet delivery in a background goroutine.
	// Default: true
	AutoProcess bool

	// ProcessInterval is how often the auto-processor delivers packets.
	// Default: 1ms
	ProcessInterval time.Duration

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// DefaultPipeConfig returns the default pipe configuration.
func DefaultPipeConfig() PipeConfig {
	return PipeConfig{
		AutoProcess:     true,
		ProcessInterval: 1 * time.Millisecond,
	}
}

// Pipe is an in-memory link between a host and an accessory.
// It wraps pion's test.Bridge; each Write becomes one packet framed as
// characteristic (1 byte) || value.
//
// By default packets are delivered in a background goroutine. With
// AutoProcess disabled, call Tick or Process to deliver them.
type Pipe struct {
	bridge *test.Bridge
	host   *PipeEnd
	acc    *PipeEnd

	mu          sync.Mutex
	closed      bool
	autoProcess bool
	interval    time.Duration
	stopCh      chan struct{}
	wg          sync.WaitGroup
}

// NewPipe creates a connected pipe with auto-processing enabled.
func NewPipe() *Pipe {
	return NewPipeWithConfig(DefaultPipeConfig())
}

// NewPipeWithConfig creates a connected pipe with the given configuration.
func NewPipeWithConfig(config PipeConfig) *Pipe {
	p := &Pipe{
		bridge:      test.NewBridge(),
		autoProcess: config.AutoProcess,
		interval:    config.ProcessInterval,
		stopCh:      make(chan struct{}),
	}
	if p.interval == 0 {
		p.interval = 1 * time.Millisecond
	}

	p.host = newPipeEnd("host", p.bridge.GetConn0(), config.LoggerFactory)
	p.acc = newPipeEnd("accessory", p.bridge.GetConn1(), config.LoggerFactory)

	if p.autoProcess {
		p.wg.Add(1)
		go p.run()
	}
	return p
}

func (p *Pipe) run() {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.bridge.Tick()
		}
	}
}

// Host returns the host (central) end of the pipe.
func (p *Pipe) Host() *PipeEnd {
	return p.host
}

// Accessory returns the accessory end of the pipe.
func (p *Pipe) Accessory() *PipeEnd {
	return p.acc
}

// Tick delivers one packet in each direction (if available).
// Returns the number of packets delivered (0, 1, or 2).
func (p *Pipe) Tick() int {
	return p.bridge.Tick()
}

// Process delivers all queued packets and returns how many were delivered.
func (p *Pipe) Process() int {
	count := 0
	for {
		n := p.Tick()
		if n == 0 {
			return count
		}
		count += n
	}
}

// Close closes both ends and stops auto-processing.
func (p *Pipe) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	if p.autoProcess {
		close(p.stopCh)
	}
	p.mu.Unlock()

	p.wg.Wait()

	err := p.host.Close()
	if accErr := p.acc.Close(); err == nil {
		err = accErr
	}
	return err
}

// PipeEnd is one side of a Pipe. It implements Link.
type PipeEnd struct {
	name string
	conn net.Conn
	log  logging.LeveledLogger

	queues map[Characteristic]chan []byte

	closeOnce sync.Once
	done      chan struct{}
}

func newPipeEnd(name string, conn net.Conn, lf logging.LoggerFactory) *PipeEnd {
	e := &PipeEnd{
		name:   name,
		conn:   conn,
		queues: make(map[Characteristic]chan []byte),
		done:   make(chan struct{}),
	}
	for ch := CentralToAccessory; ch <= AccessoryToCentral; ch++ {
		e.queues[ch] = make(chan []byte, queueDepth)
	}
	if lf != nil {
		e.log = lf.NewLogger("link")
	}

	go e.readLoop()
	return e
}

// readLoop demultiplexes incoming packets into per-characteristic queues.
func (e *PipeEnd) readLoop() {
	buf := make([]byte, headerSize+MaxValueSize)

	for {
		n, err := e.conn.Read(buf)
		if err != nil {
			e.shutdown()
			return
		}
		if n < headerSize {
			e.warnf("%s: dropping packet: %v", e.name, ErrMalformedPacket)
			continue
		}

		ch := Characteristic(buf[0])
		q, ok := e.queues[ch]
		if !ok {
			e.warnf("%s: dropping packet: %v %d", e.name, ErrUnknownCharacteristic, buf[0])
			continue
		}

		value := make([]byte, n-headerSize)
		copy(value, buf[headerSize:n])
		e.tracef("%s: received %d bytes on %s", e.name, len(value), ch)

		select {
		case q <- value:
		case <-e.done:
			return
		}
	}
}

// Write sends one value to the characteristic.
func (e *PipeEnd) Write(ctx context.Context, ch Characteristic, data []byte) error {
	if !ch.Valid() {
		return ErrUnknownCharacteristic
	}
	if len(data) > MaxValueSize {
		return ErrValueTooLarge
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case <-e.done:
		return ErrClosed
	default:
	}

	pkt := make([]byte, 0, headerSize+len(data))
	pkt = append(pkt, byte(ch))
	pkt = append(pkt, data...)

	if _, err := e.conn.Write(pkt); err != nil {
		return err
	}
	e.tracef("%s: sent %d bytes on %s", e.name, len(data), ch)
	return nil
}

// Read blocks until a value for ch arrives, ctx is done, or the end closes.
func (e *PipeEnd) Read(ctx context.Context, ch Characteristic) ([]byte, error) {
	q, ok := e.queues[ch]
	if !ok {
		return nil, ErrUnknownCharacteristic
	}

	select {
	case v := <-q:
		return v, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-e.done:
		return nil, ErrClosed
	}
}

// Close closes this end. Pending and future reads return ErrClosed.
func (e *PipeEnd) Close() error {
	var err error
	e.closeOnce.Do(func() {
		close(e.done)
		// Unblock readLoop.
		_ = e.conn.SetReadDeadline(time.Now())
		err = e.conn.Close()
	})
	return err
}

// shutdown marks the end closed after the underlying connection failed.
func (e *PipeEnd) shutdown() {
	e.closeOnce.Do(func() {
		close(e.done)
		_ = e.conn.Close()
	})
}

func (e *PipeEnd) tracef(format string, args ...interface{}) {
	if e.log != nil {
		e.log.Tracef(format, args...)
	}
}

func (e *PipeEnd) warnf(format string, args ...interface{}) {
	if e.log != nil {
		e.log.Warnf(format, args...)
	}
}

// Verify PipeEnd implements Link.
var _ Link = (*PipeEnd)(nil)
