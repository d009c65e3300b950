package transport

import (
	"fmt"
	"sync"

	"gitlab.com/gomidi/midi/v2/drivers"
)

// Out exposes a Link as a gomidi output port so midi.SendTo can drive it.
type Out struct {
	name   string
	number int
	link   Link
}

var _ drivers.Out = (*Out)(nil)

// NewOut wraps link.
func NewOut(name string, number int, link Link) *Out {
	return &Out{name: name, number: number, link: link}
}

// Open connects the link.
func (o *Out) Open() error {
	if o.link.IsConnected() {
		return nil
	}
	return o.link.Connect()
}

// Close closes the link.
func (o *Out) Close() error { return o.link.Close() }

// IsOpen reports whether the link is connected.
func (o *Out) IsOpen() bool { return o.link.IsConnected() }

// Number returns the port number.
func (o *Out) Number() int { return o.number }

// String returns the port name.
func (o *Out) String() string { return o.name }

// Underlying returns the link.
func (o *Out) Underlying() interface{} { return o.link }

// Send writes one complete message.
func (o *Out) Send(data []byte) error {
	if _, err := o.link.Write(data); err != nil {
		return fmt.Errorf("%s: %w", o.name, err)
	}
	return nil
}

// In exposes a Link as a gomidi input port so midi.ListenTo can read
// complete messages from it.
type In struct {
	name   string
	number int
	link   Link

	mu        sync.Mutex
	listening bool
}

var _ drivers.In = (*In)(nil)

// NewIn wraps link.
func NewIn(name string, number int, link Link) *In {
	return &In{name: name, number: number, link: link}
}

// Open connects the link.
func (i *In) Open() error {
	if i.link.IsConnected() {
		return nil
	}
	return i.link.Connect()
}

// Close closes the link, which ends any listener.
func (i *In) Close() error { return i.link.Close() }

// IsOpen reports whether the link is connected.
func (i *In) IsOpen() bool { return i.link.IsConnected() }

// Number returns the port number.
func (i *In) Number() int { return i.number }

// String returns the port name.
func (i *In) String() string { return i.name }

// Underlying returns the link.
func (i *In) Underlying() interface{} { return i.link }

// Listen parses the link's chunks into messages and passes them to onMsg
// until stopped or the link closes. Sysex is delivered only when the config
// asks for it.
func (i *In) Listen(onMsg func(msg []byte, milliseconds int32), config drivers.ListenConfig) (func(), error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.listening {
		return nil, fmt.Errorf("%s: already listening", i.name)
	}
	if !i.link.IsConnected() {
		return nil, fmt.Errorf("%s: %w", i.name, ErrNotConnected)
	}
	i.listening = true

	max := int(config.SysExBufferSize)
	parser := NewParser(max)
	stop := make(chan struct{})
	done := make(chan struct{})
	chunks := i.link.Chunks()

	go func() {
		defer close(done)
		defer func() {
			i.mu.Lock()
			i.listening = false
			i.mu.Unlock()
		}()
		for {
			select {
			case <-stop:
				return
			case chunk, ok := <-chunks:
				if !ok {
					return
				}
				parser.Feed(chunk, func(msg []byte) {
					if msg[0] == sysexStart && !config.SysEx {
						return
					}
					onMsg(msg, 0)
				})
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
		})
	}, nil
}
