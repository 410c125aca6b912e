package session

import (
	"errors"
	"net"
	"os"
	"sync"
)

// channelScript describes the behaviour of every channel a fake connection
// opens: emit the chunks, then hang, wait for input, or exit.
type channelScript struct {
	chunks      []string
	exit        int
	hang        bool // never complete
	waitForSend bool // complete only once input arrived
}

// fakeDialer hands out fakeConns, optionally failing a number of dials
// first.
type fakeDialer struct {
	mu       sync.Mutex
	failures int
	dials    int
	conns    []*fakeConn

	// script drives every channel the dialed conns open.
	script channelScript
}

func (d *fakeDialer) Dial(host string, port int, creds Credentials, tunnel Tunneler) (Conn, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dials++
	if d.failures > 0 {
		d.failures--
		return nil, errors.New("connection refused")
	}
	c := &fakeConn{active: true, tunnel: tunnel, script: d.script}
	d.conns = append(d.conns, c)
	return c, nil
}

type fakeConn struct {
	mu       sync.Mutex
	active   bool
	closes   int
	tunnel   Tunneler
	script   channelScript
	channels []*fakeChannel
	files    *fakeFiles
}

func (c *fakeConn) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *fakeConn) OpenTunnel(host string, port int) (net.Conn, error) {
	return nil, errors.New("not implemented")
}

func (c *fakeConn) OpenChannel() (Channel, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	// One fresh channel per attempt, all driven by the same script.
	ch := &fakeChannel{script: c.script}
	c.channels = append(c.channels, ch)
	return ch, nil
}

func (c *fakeConn) Files() (FileTransfer, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.files == nil {
		c.files = newFakeFiles()
	}
	return c.files, nil
}

func (c *fakeConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = false
	c.closes++
	return nil
}

// fakeChannel plays its script for one command attempt.
type fakeChannel struct {
	script channelScript

	mu       sync.Mutex
	cmd      string
	sent     []string
	closed   bool
	exitCode int
	exitOK   bool

	output chan []byte
	done   chan int
	sendC  chan struct{}
}

func (ch *fakeChannel) Start(cmd string) error {
	ch.mu.Lock()
	ch.cmd = cmd
	ch.mu.Unlock()

	ch.output = make(chan []byte)
	ch.done = make(chan int, 1)
	ch.sendC = make(chan struct{}, 16)

	go func() {
		for _, c := range ch.script.chunks {
			ch.output <- []byte(c)
		}
		if ch.script.hang {
			return
		}
		if ch.script.waitForSend {
			<-ch.sendC
		}
		close(ch.output)
		ch.mu.Lock()
		ch.exitCode = ch.script.exit
		ch.exitOK = true
		ch.mu.Unlock()
		ch.done <- ch.script.exit
	}()
	return nil
}

func (ch *fakeChannel) Output() <-chan []byte { return ch.output }
func (ch *fakeChannel) Done() <-chan int      { return ch.done }

func (ch *fakeChannel) Send(data string) error {
	ch.mu.Lock()
	ch.sent = append(ch.sent, data)
	ch.mu.Unlock()
	select {
	case ch.sendC <- struct{}{}:
	default:
	}
	return nil
}

func (ch *fakeChannel) ExitStatus() (int, bool) {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.exitCode, ch.exitOK
}

func (ch *fakeChannel) IsClosed() bool {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.closed
}

func (ch *fakeChannel) Close() error {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	ch.closed = true
	return nil
}

func (ch *fakeChannel) sentData() []string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return append([]string(nil), ch.sent...)
}

func (ch *fakeChannel) startedCmd() string {
	ch.mu.Lock()
	defer ch.mu.Unlock()
	return ch.cmd
}

// fakeFiles is an in-memory FileTransfer. Reads of unknown paths return
// defaultContent so tests don't have to predict random staging paths.
type fakeFiles struct {
	mu             sync.Mutex
	contents       map[string][]byte
	removed        []string
	defaultContent []byte
}

func newFakeFiles() *fakeFiles {
	return &fakeFiles{contents: make(map[string][]byte), defaultContent: []byte("remote-content")}
}

func (f *fakeFiles) ReadFile(path string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if content, ok := f.contents[path]; ok {
		return content, nil
	}
	return f.defaultContent, nil
}

func (f *fakeFiles) WriteFile(path string, content []byte, perm os.FileMode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.contents[path] = append([]byte(nil), content...)
	return nil
}

func (f *fakeFiles) Remove(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, path)
	delete(f.contents, path)
	return nil
}
