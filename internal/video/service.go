// File: internal/video/service.go
// Service drives the video pipeline: starting/stopping browser-side
// capture over IPC, serving single JPEG frames and MJPEG multipart
// streams from the shared-memory ring, and fanning frames out to
// WebSocket subscribers with per-subscriber backpressure dropping. A
// reference count tracks how many subscribers + HTTP callers are active
// per context so capture only stops once nobody needs it.
package video

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/owlhq/owl-gateway/internal/ipcmux"
	"github.com/owlhq/owl-gateway/internal/router"
	"github.com/owlhq/owl-gateway/internal/videoring"
	"github.com/owlhq/owl-gateway/internal/wshub"
)

// Options configures a Service.
type Options struct {
	// PollInterval is how often the subscriber pump and each MJPEG stream
	// poll an active stream's shared-memory region for a new frame.
	PollInterval time.Duration
	// StaleAfter is stored with the options; no Service code path reads it,
	// so a stream is never marked inactive for lack of new frames.
	StaleAfter time.Duration
	// SubscriberQueue is the per-subscriber backpressure ring capacity.
	SubscriberQueue uint64
	// ShmPrefix names the shared-memory region per context, resolved by
	// the browser's shm_open under /dev/shm; a leading '/' is trimmed
	// before joining, matching videoring's own path construction.
	ShmPrefix string
	// MJPEGBoundary is the multipart boundary token; must match the one
	// internal/router writes in the stream's HTTP response header.
	MJPEGBoundary string
	Log           *logrus.Entry
}

type stream struct {
	ctxID string
	mu    sync.Mutex
	rdr   *videoring.Reader
	refs  int

	subMu sync.Mutex
	subs  map[int]*subscriber

	nextSubID int
	stopCh    chan struct{}
	stopOnce  sync.Once
}

type subscriber struct {
	ring *ringBuffer[[]byte]
	wake chan struct{}
	done chan struct{}
}

// Service implements internal/router.VideoStreamer and
// internal/wshub.VideoHub.
type Service struct {
	ipc  ipcmux.IPC
	opts Options
	log  *logrus.Entry

	mu      sync.Mutex
	streams map[string]*stream
}

var (
	_ router.VideoStreamer = (*Service)(nil)
	_ wshub.VideoHub       = (*Service)(nil)
)

// New constructs a Service bound to the browser IPC channel.
func New(ipc ipcmux.IPC, opts Options) *Service {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 15 * time.Millisecond
	}
	if opts.StaleAfter <= 0 {
		opts.StaleAfter = 5 * time.Second
	}
	if opts.SubscriberQueue <= 0 {
		opts.SubscriberQueue = 4
	}
	if opts.ShmPrefix == "" {
		opts.ShmPrefix = "owl_stream_ctx_"
	}
	opts.ShmPrefix = strings.TrimPrefix(opts.ShmPrefix, "/")
	if opts.MJPEGBoundary == "" {
		opts.MJPEGBoundary = "owlboundary"
	}
	if opts.Log == nil {
		opts.Log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Service{
		ipc:     ipc,
		opts:    opts,
		log:     opts.Log.WithField("component", "video"),
		streams: make(map[string]*stream),
	}
}

func (s *Service) regionName(ctxID string) string {
	return s.opts.ShmPrefix + ctxID
}

type subscribeVideoParams struct {
	ContextID string `json:"contextId"`
}

// acquire opens (or reuses) the shared-memory reader for ctxID, starting
// browser-side capture via subscribeVideo on first reference.
func (s *Service) acquire(ctx context.Context, ctxID string) (*stream, error) {
	s.mu.Lock()
	st, ok := s.streams[ctxID]
	if !ok {
		st = &stream{ctxID: ctxID, subs: make(map[int]*subscriber), stopCh: make(chan struct{})}
		s.streams[ctxID] = st
	}
	s.mu.Unlock()

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.refs == 0 {
		params, _ := json.Marshal(subscribeVideoParams{ContextID: ctxID})
		if _, err := s.ipc.SendSync(ctx, "subscribeVideo", params, 10*time.Second); err != nil {
			return nil, fmt.Errorf("video: subscribeVideo %s: %w", ctxID, err)
		}
		rdr, err := openWithRetry(s.regionName(ctxID), 20, 25*time.Millisecond)
		if err != nil {
			return nil, err
		}
		st.rdr = rdr
		go s.pump(st)
	}
	st.refs++
	return st, nil
}

func openWithRetry(name string, attempts int, delay time.Duration) (*videoring.Reader, error) {
	var lastErr error
	for i := 0; i < attempts; i++ {
		rdr, err := videoring.Open(name)
		if err == nil {
			return rdr, nil
		}
		lastErr = err
		time.Sleep(delay)
	}
	return nil, lastErr
}

// release drops one reference to ctxID's stream, stopping browser-side
// capture and closing the mmap once the last reference is gone.
func (s *Service) release(ctxID string) {
	s.mu.Lock()
	st, ok := s.streams[ctxID]
	s.mu.Unlock()
	if !ok {
		return
	}

	st.mu.Lock()
	st.refs--
	shouldStop := st.refs <= 0
	st.mu.Unlock()
	if !shouldStop {
		return
	}

	s.mu.Lock()
	delete(s.streams, ctxID)
	s.mu.Unlock()

	st.stopOnce.Do(func() { close(st.stopCh) })
	st.mu.Lock()
	if st.rdr != nil {
		_ = st.rdr.Close()
	}
	st.mu.Unlock()

	params, _ := json.Marshal(subscribeVideoParams{ContextID: ctxID})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := s.ipc.SendSync(ctx, "unsubscribeVideo", params, 5*time.Second); err != nil {
		s.log.WithError(err).WithField("context", ctxID).Warn("video: unsubscribeVideo failed")
	}
}

// pump polls the shared-memory reader and fans each new frame out to every
// subscriber's backpressure ring, dropping the oldest queued frame for a
// subscriber that can't keep up rather than blocking the pump loop.
func (s *Service) pump(st *stream) {
	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-st.stopCh:
			return
		case <-ticker.C:
		}
		st.mu.Lock()
		rdr := st.rdr
		st.mu.Unlock()
		if rdr == nil {
			return
		}
		frame, err := rdr.Read()
		if err != nil || frame == nil {
			continue
		}

		st.subMu.Lock()
		for _, sub := range st.subs {
			if !sub.ring.enqueue(frame.Data) {
				sub.ring.dequeue()
				sub.ring.enqueue(frame.Data)
			}
			select {
			case sub.wake <- struct{}{}:
			default:
			}
		}
		st.subMu.Unlock()
	}
}

// Subscribe registers push to receive every frame streamed for ctxID,
// starting capture on the first subscriber, and returns an idempotent
// unsubscribe func. It implements internal/wshub.VideoHub.
func (s *Service) Subscribe(ctxID string, push func([]byte)) func() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := s.acquire(ctx, ctxID)
	if err != nil {
		s.log.WithError(err).WithField("context", ctxID).Warn("video: subscribe failed")
		return func() {}
	}

	sub := &subscriber{
		ring: newRingBuffer[[]byte](s.opts.SubscriberQueue),
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	st.subMu.Lock()
	id := st.nextSubID
	st.nextSubID++
	st.subs[id] = sub
	st.subMu.Unlock()

	go func() {
		for {
			select {
			case <-sub.done:
				return
			case <-st.stopCh:
				return
			case <-sub.wake:
				for {
					data, ok := sub.ring.dequeue()
					if !ok {
						break
					}
					push(data)
				}
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(sub.done)
			st.subMu.Lock()
			delete(st.subs, id)
			st.subMu.Unlock()
			s.release(ctxID)
		})
	}
}

// FrameJPEG returns the most recent frame for ctxID, implementing
// internal/router.VideoStreamer for the single-shot /video/frame route.
func (s *Service) FrameJPEG(ctxID string) ([]byte, int, int, int64, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	st, err := s.acquire(ctx, ctxID)
	if err != nil {
		return nil, 0, 0, 0, err
	}
	defer s.release(ctxID)

	st.mu.Lock()
	rdr := st.rdr
	st.mu.Unlock()

	rdr.Wait(2 * time.Second)
	frame, err := rdr.Read()
	if err != nil {
		return nil, 0, 0, 0, err
	}
	if frame == nil {
		return nil, 0, 0, 0, fmt.Errorf("video: no frame available for %s", ctxID)
	}
	return frame.Data, frame.Width, frame.Height, frame.TimestampMs, nil
}

// StreamMJPEG writes a multipart/x-mixed-replace sequence of JPEG frames
// to w until ctx is cancelled or the connection breaks, implementing
// internal/router.VideoStreamer for the /video/stream route.
func (s *Service) StreamMJPEG(ctx context.Context, ctxID string, w router.ChunkWriter) error {
	st, err := s.acquire(ctx, ctxID)
	if err != nil {
		return err
	}
	defer s.release(ctxID)

	ticker := time.NewTicker(s.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-st.stopCh:
			return fmt.Errorf("video: stream %s stopped", ctxID)
		case <-ticker.C:
		}

		st.mu.Lock()
		rdr := st.rdr
		st.mu.Unlock()
		frame, err := rdr.Read()
		if err != nil || frame == nil {
			continue
		}
		if err := s.writeMJPEGPart(w, frame.Data); err != nil {
			return err
		}
	}
}

func (s *Service) writeMJPEGPart(w router.ChunkWriter, jpeg []byte) error {
	header := fmt.Sprintf("--%s\r\nContent-Type: image/jpeg\r\nContent-Length: %d\r\n\r\n", s.opts.MJPEGBoundary, len(jpeg))
	if _, err := w.Write([]byte(header)); err != nil {
		return err
	}
	if _, err := w.Write(jpeg); err != nil {
		return err
	}
	if _, err := w.Write([]byte("\r\n")); err != nil {
		return err
	}
	w.Flush()
	return nil
}

// StatsSnapshot implements internal/stats.ComponentProvider.
func (s *Service) StatsSnapshot() any {
	s.mu.Lock()
	defer s.mu.Unlock()
	type streamStat struct {
		ContextID    string
		Subscribers  int
		FramesRead   uint64
		FramesMissed uint64
	}
	out := make([]streamStat, 0, len(s.streams))
	for ctxID, st := range s.streams {
		st.mu.Lock()
		var read, missed uint64
		if st.rdr != nil {
			read, missed = st.rdr.Stats()
		}
		st.mu.Unlock()
		st.subMu.Lock()
		n := len(st.subs)
		st.subMu.Unlock()
		out = append(out, streamStat{ContextID: ctxID, Subscribers: n, FramesRead: read, FramesMissed: missed})
	}
	return struct {
		ActiveStreams int
		Streams       []streamStat
	}{len(out), out}
}
