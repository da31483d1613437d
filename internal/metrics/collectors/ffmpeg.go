// Package collectors feeds ffmpeg progress reports into the metrics package.
package collectors

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/smazurov/screenrec/internal/logging"
	"github.com/smazurov/screenrec/internal/metrics"
)

// FFmpegCollector reads the key=value blocks ffmpeg writes to
// -progress unix://<socket> and publishes them per recording.
type FFmpegCollector struct {
	logger     logging.Logger
	socketPath string
	recording  string
	listener   net.Listener
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	stopOnce   sync.Once
}

// NewFFmpegCollector creates a collector for one recording.
func NewFFmpegCollector(socketPath, recording string) *FFmpegCollector {
	return &FFmpegCollector{
		logger:     logging.GetLogger("ffmpeg").With("component", "progress", "recording", recording),
		socketPath: socketPath,
		recording:  recording,
	}
}

// URL is the value to pass to ffmpeg's -progress flag.
func (f *FFmpegCollector) URL() string {
	return "unix://" + f.socketPath
}

// Start binds the socket and accepts connections until Stop or ctx is done.
func (f *FFmpegCollector) Start(ctx context.Context) error {
	if err := os.Remove(f.socketPath); err != nil && !os.IsNotExist(err) {
		f.logger.Warn("Failed to clean up old socket file", "error", err)
	}
	listener, err := net.Listen("unix", f.socketPath)
	if err != nil {
		return fmt.Errorf("listen on progress socket %s: %w", f.socketPath, err)
	}
	f.listener = listener
	f.ctx, f.cancel = context.WithCancel(ctx)

	f.logger.Debug("Progress socket listening", "socket", f.socketPath)
	f.wg.Add(1)
	go f.accept()
	return nil
}

// Stop closes the socket and forgets the recording's progress metrics.
func (f *FFmpegCollector) Stop() error {
	var stopErr error
	f.stopOnce.Do(func() {
		if f.cancel != nil {
			f.cancel()
		}
		if f.listener != nil {
			if err := f.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
				stopErr = err
			}
		}
		f.wg.Wait()
		if err := os.Remove(f.socketPath); err != nil && !os.IsNotExist(err) && stopErr == nil {
			stopErr = err
		}
		metrics.DeleteFFmpegMetrics(f.recording)
	})
	return stopErr
}

func (f *FFmpegCollector) accept() {
	defer f.wg.Done()
	for {
		if ul, ok := f.listener.(*net.UnixListener); ok {
			_ = ul.SetDeadline(time.Now().Add(time.Second))
		}

		conn, err := f.listener.Accept()
		if err != nil {
			if f.ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return
			}
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}
			f.logger.Warn("Error accepting connection", "error", err)
			continue
		}

		f.wg.Add(1)
		go f.handleConnection(conn)
	}
}

func (f *FFmpegCollector) handleConnection(conn net.Conn) {
	defer f.wg.Done()
	defer conn.Close()

	// Unblock the scanner when the collector stops.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-f.ctx.Done():
			_ = conn.SetReadDeadline(time.Now())
		case <-done:
		}
	}()

	scanner := bufio.NewScanner(conn)
	block := make(map[string]string)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		block[key] = strings.TrimSpace(value)

		// progress= terminates every block, "end" on the last one.
		if key == "progress" {
			f.publish(block)
			block = make(map[string]string)
		}
	}
}

func (f *FFmpegCollector) publish(data map[string]string) {
	if fps, err := strconv.ParseFloat(data["fps"], 64); err == nil {
		metrics.SetFFmpegFPS(f.recording, fps)
	}
	if dropped, err := strconv.ParseFloat(data["drop_frames"], 64); err == nil {
		metrics.SetFFmpegDroppedFrames(f.recording, dropped)
	}
	if dup, err := strconv.ParseFloat(data["dup_frames"], 64); err == nil {
		metrics.SetFFmpegDuplicateFrames(f.recording, dup)
	}
	speed := strings.TrimSpace(strings.TrimSuffix(data["speed"], "x"))
	if v, err := strconv.ParseFloat(speed, 64); err == nil {
		metrics.SetFFmpegSpeed(f.recording, v)
	}
	if data["progress"] == "end" {
		f.logger.Debug("ffmpeg reported end of progress")
	}
}
