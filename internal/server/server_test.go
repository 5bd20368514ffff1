package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"testing/iotest"
	"time"
)

// countingReader records every Read call.
type countingReader struct {
	r     io.Reader
	calls int
	sizes []int
}

func (c *countingReader) Read(p []byte) (int, error) {
	c.calls++
	c.sizes = append(c.sizes, len(p))
	return c.r.Read(p)
}

// chunkReader returns data in the given chunk sizes, one chunk per Read.
type chunkReader struct {
	data   []byte
	chunks []int
}

func (c *chunkReader) Read(p []byte) (int, error) {
	if len(c.data) == 0 {
		return 0, io.EOF
	}
	size := len(c.data)
	if len(c.chunks) > 0 {
		size = c.chunks[0]
		c.chunks = c.chunks[1:]
	}
	if size > len(p) {
		size = len(p)
	}
	n := copy(p, c.data[:size])
	c.data = c.data[n:]
	return n, nil
}

type recordingSink struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (s *recordingSink) Accept(payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads = append(s.payloads, payload)
	return s.err
}

func (s *recordingSink) all() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.payloads...)
}

func newTestServer(sink PayloadSink) *Server {
	return New(DefaultConfig(), &fakeProvider{}, nil, sink)
}

func postSystemSet(s *Server, body io.Reader, length int64) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, SystemSetPath, body)
	req.ContentLength = length
	rec := httptest.NewRecorder()
	s.systemSetHandler(newServerContext(DefaultBasePath)).ServeHTTP(rec, req)
	return rec
}

func TestInfoHandler(t *testing.T) {
	tests := []struct {
		name   string
		source StatusSource
		want   Status
	}{
		{
			name: "defaults",
			want: Status{Message: DefaultMessage, ExterInfo: DefaultExterInfo},
		},
		{
			name: "populated",
			source: StatusFunc(func() Status {
				return Status{Hostname: "wifiboot-01", Version: "1.2.0", State: "connected", SSID: "lab"}
			}),
			want: Status{
				Message:   DefaultMessage,
				ExterInfo: DefaultExterInfo,
				Hostname:  "wifiboot-01",
				Version:   "1.2.0",
				State:     "connected",
				SSID:      "lab",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(DefaultConfig(), &fakeProvider{}, tt.source, nil)
			rec := httptest.NewRecorder()
			s.infoHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, InfoPath, nil))

			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, want 200", rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q, want application/json", ct)
			}

			var got Status
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatalf("invalid JSON: %v", err)
			}
			if got != tt.want {
				t.Errorf("status = %+v, want %+v", got, tt.want)
			}

			var raw map[string]any
			_ = json.Unmarshal(rec.Body.Bytes(), &raw)
			for _, key := range []string{"message", "ExterInfo"} {
				if _, ok := raw[key]; !ok {
					t.Errorf("response missing %q field", key)
				}
			}
		})
	}
}

func TestSystemSet_Rejections(t *testing.T) {
	tests := []struct {
		name       string
		length     int64
		body       string
		wantStatus int
		wantBody   string
		wantReads  int
	}{
		{
			name:       "oversize",
			length:     2000,
			body:       strings.Repeat("x", 2000),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "content too long",
		},
		{
			name:       "exactly scratch size",
			length:     ScratchSize,
			body:       strings.Repeat("x", ScratchSize),
			wantStatus: http.StatusInternalServerError,
			wantBody:   "content too long",
		},
		{
			name:       "empty",
			length:     0,
			wantStatus: http.StatusBadRequest,
			wantBody:   "Unknown request",
		},
		{
			name:       "unknown length",
			length:     -1,
			body:       "abc",
			wantStatus: http.StatusLengthRequired,
			wantBody:   "Length Required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sink := &recordingSink{}
			s := newTestServer(sink)
			body := &countingReader{r: strings.NewReader(tt.body)}

			rec := postSystemSet(s, body, tt.length)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := strings.TrimSpace(rec.Body.String()); got != tt.wantBody {
				t.Errorf("body = %q, want %q", got, tt.wantBody)
			}
			if body.calls != tt.wantReads {
				t.Errorf("Read called %d times, want %d", body.calls, tt.wantReads)
			}
			if len(sink.all()) != 0 {
				t.Error("sink received a rejected payload")
			}
		})
	}
}

func TestSystemSet_ChunkedIngestion(t *testing.T) {
	sink := &recordingSink{}
	s := newTestServer(sink)

	rec := postSystemSet(s, &chunkReader{data: []byte("abc"), chunks: []int{2, 1}}, 3)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := rec.Body.String(); got != "Post control value successfully" {
		t.Errorf("body = %q", got)
	}
	payloads := sink.all()
	if len(payloads) != 1 || string(payloads[0]) != "abc" {
		t.Errorf("sink payloads = %q, want [abc]", payloads)
	}
}

func TestIngest_TerminatesPayload(t *testing.T) {
	buf := bytes.Repeat([]byte{0xff}, ScratchSize)

	n, err := ingest(&chunkReader{data: []byte("abc"), chunks: []int{2, 1}}, 3, buf)
	if err != nil {
		t.Fatalf("ingest() error = %v", err)
	}
	if n != 3 {
		t.Errorf("ingest() = %d, want 3", n)
	}
	if !bytes.Equal(buf[:4], []byte("abc\x00")) {
		t.Errorf("buffer = %q, want %q", buf[:4], "abc\x00")
	}
	if buf[4] != 0xff {
		t.Error("ingest wrote past the terminator")
	}
}

func TestIngest_OneByteAtATime(t *testing.T) {
	payload := bytes.Repeat([]byte("0123456789"), 103)[:ScratchSize-1]
	counter := &countingReader{r: iotest.OneByteReader(bytes.NewReader(payload))}
	buf := make([]byte, ScratchSize)

	n, err := ingest(counter, len(payload), buf)
	if err != nil {
		t.Fatalf("ingest() error = %v", err)
	}
	if n != len(payload) || !bytes.Equal(buf[:n], payload) {
		t.Error("payload not assembled intact")
	}
	if counter.calls != len(payload) {
		t.Errorf("Read called %d times, want %d", counter.calls, len(payload))
	}
}

func TestIngest_NeverReadsPastLength(t *testing.T) {
	// the body holds more than declared; only the declared bytes may be consumed
	counter := &countingReader{r: &chunkReader{data: []byte("hello world"), chunks: []int{3, 3, 3, 3}}}
	buf := make([]byte, ScratchSize)

	n, err := ingest(counter, 5, buf)
	if err != nil {
		t.Fatalf("ingest() error = %v", err)
	}
	if string(buf[:n]) != "hello" {
		t.Errorf("payload = %q, want hello", buf[:n])
	}

	want := []int{5, 2}
	if fmt.Sprint(counter.sizes) != fmt.Sprint(want) {
		t.Errorf("read sizes = %v, want %v", counter.sizes, want)
	}
}

func TestIngest_TransportFaults(t *testing.T) {
	tests := []struct {
		name   string
		body   io.Reader
		length int
	}{
		{"short body", strings.NewReader("abc"), 10},
		{"read error", iotest.ErrReader(errors.New("connection reset")), 4},
		{"timeout after partial", iotest.TimeoutReader(iotest.OneByteReader(strings.NewReader("abcd"))), 4},
		{"no progress", &chunkReader{data: []byte("abcd"), chunks: []int{2, 0}}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ingest(tt.body, tt.length, make([]byte, ScratchSize))
			if !IsRequestError(err, TransportFault) {
				t.Errorf("ingest() error = %v, want TransportFault", err)
			}
		})
	}
}

func TestSystemSet_TransportFaultResponse(t *testing.T) {
	sink := &recordingSink{}
	s := newTestServer(sink)

	rec := postSystemSet(s, strings.NewReader("abc"), 10)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != "Bad Request" {
		t.Errorf("body = %q, want Bad Request", got)
	}
	if len(sink.all()) != 0 {
		t.Error("sink received an incomplete payload")
	}
}

func TestSystemSet_SinkErrorStillAcknowledged(t *testing.T) {
	sink := &recordingSink{err: errors.New("not json")}
	s := newTestServer(sink)

	rec := postSystemSet(s, strings.NewReader("opaque"), 6)

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestRequestError(t *testing.T) {
	tests := []struct {
		kind       RequestErrorKind
		wantStatus int
		wantMsg    string
	}{
		{PayloadTooLarge, http.StatusInternalServerError, "content too long"},
		{EmptyPayload, http.StatusBadRequest, "Unknown request"},
		{TransportFault, http.StatusBadRequest, "Bad Request"},
		{LengthRequired, http.StatusLengthRequired, "Length Required"},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := &RequestError{Kind: tt.kind}
			if got := err.Status(); got != tt.wantStatus {
				t.Errorf("Status() = %d, want %d", got, tt.wantStatus)
			}
			if got := err.Message(); got != tt.wantMsg {
				t.Errorf("Message() = %q, want %q", got, tt.wantMsg)
			}
		})
	}

	wrapped := fmt.Errorf("handler: %w", &RequestError{Kind: EmptyPayload})
	if !IsRequestError(wrapped, EmptyPayload) {
		t.Error("IsRequestError() did not see through wrapping")
	}
	if IsRequestError(wrapped, TransportFault) {
		t.Error("IsRequestError() matched the wrong kind")
	}
}

// fakeProvider records registrations and can be told to refuse them.
type fakeProvider struct {
	startErr  error
	rejects   map[string]bool
	started   bool
	stopped   bool
	routes    []Route
	startedAs ProviderConfig
}

func (p *fakeProvider) Start(cfg ProviderConfig) error {
	if p.startErr != nil {
		return p.startErr
	}
	p.started = true
	p.startedAs = cfg
	return nil
}

func (p *fakeProvider) Register(route Route) error {
	if p.rejects[route.Path] {
		return errors.New("no free handler slots")
	}
	p.routes = append(p.routes, route)
	return nil
}

func (p *fakeProvider) Stop(context.Context) error {
	p.stopped = true
	return nil
}

func TestServer_RegistrationPolicy(t *testing.T) {
	tests := []struct {
		name           string
		rejects        map[string]bool
		wantErr        error
		wantDegraded   bool
		wantRegistered int
		wantStopped    bool
	}{
		{
			name:           "both routes",
			wantRegistered: 2,
		},
		{
			name:           "status only",
			rejects:        map[string]bool{SystemSetPath: true},
			wantDegraded:   true,
			wantRegistered: 1,
		},
		{
			name:           "configuration only",
			rejects:        map[string]bool{InfoPath: true},
			wantDegraded:   true,
			wantRegistered: 1,
		},
		{
			name:        "neither",
			rejects:     map[string]bool{InfoPath: true, SystemSetPath: true},
			wantErr:     ErrNoHandlersRegistered,
			wantStopped: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := &fakeProvider{rejects: tt.rejects}
			s := New(DefaultConfig(), provider, nil, nil)

			err := s.Start(context.Background())
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Start() error = %v, want %v", err, tt.wantErr)
			}
			if got := s.Degraded(); got != tt.wantDegraded {
				t.Errorf("Degraded() = %v, want %v", got, tt.wantDegraded)
			}
			if got := len(s.Registered()); got != tt.wantRegistered {
				t.Errorf("len(Registered()) = %d, want %d", got, tt.wantRegistered)
			}
			if provider.stopped != tt.wantStopped {
				t.Errorf("provider stopped = %v, want %v", provider.stopped, tt.wantStopped)
			}
			if tt.wantErr != nil {
				if s.Running() {
					t.Error("Running() = true after failed start")
				}
				if s.sctx != nil {
					t.Error("server context retained after failed start")
				}
			}
		})
	}
}

func TestServer_StartFailure(t *testing.T) {
	provider := &fakeProvider{startErr: errors.New("address in use")}
	s := New(DefaultConfig(), provider, nil, nil)

	err := s.Start(context.Background())
	if !errors.Is(err, ErrStartFailure) {
		t.Fatalf("Start() error = %v, want ErrStartFailure", err)
	}
	if len(provider.routes) != 0 {
		t.Error("routes registered on a provider that failed to start")
	}
}

func TestServer_ProviderConfig(t *testing.T) {
	provider := &fakeProvider{}
	s := New(Config{Port: 8080}, provider, nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}

	want := ProviderConfig{Port: 8080, LingerTimeout: DefaultLingerTimeout, ReadTimeout: DefaultReadTimeout}
	if provider.startedAs != want {
		t.Errorf("provider config = %+v, want %+v", provider.startedAs, want)
	}

	if err := s.Start(context.Background()); !errors.Is(err, ErrStartFailure) {
		t.Errorf("second Start() error = %v, want ErrStartFailure", err)
	}

	if err := s.Stop(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s.Running() || s.sctx != nil {
		t.Error("server context retained after Stop()")
	}
	if err := s.Stop(context.Background()); err != nil {
		t.Errorf("second Stop() error = %v", err)
	}
}

func startHTTPServer(t *testing.T, sink PayloadSink) (*Server, string) {
	t.Helper()
	provider := NewHTTPProvider()
	s := New(Config{Host: "127.0.0.1", Port: 0, LingerTimeout: time.Second}, provider, nil, sink)
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.Stop(ctx)
	})
	return s, "http://" + provider.Addr().String()
}

func TestHTTPProvider_EndToEnd(t *testing.T) {
	sink := &recordingSink{}
	_, base := startHTTPServer(t, sink)

	resp, err := http.Get(base + InfoPath)
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET info status = %d, want 200", resp.StatusCode)
	}

	resp, err = http.Post(base+SystemSetPath, "application/json", strings.NewReader(`{"mode":1}`))
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK || string(body) != "Post control value successfully" {
		t.Errorf("POST systemset = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(base + "/api/v1/missing")
	if err != nil {
		t.Fatal(err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown path status = %d, want 404", resp.StatusCode)
	}
}

func TestHTTPProvider_ConcurrentPayloadsStayIsolated(t *testing.T) {
	sink := &recordingSink{}
	_, base := startHTTPServer(t, sink)

	const clients = 16
	var wg sync.WaitGroup
	for i := 0; i < clients; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			payload := strings.Repeat(fmt.Sprintf("%02d", i), 200)
			resp, err := http.Post(base+SystemSetPath, "text/plain", strings.NewReader(payload))
			if err != nil {
				t.Error(err)
				return
			}
			_ = resp.Body.Close()
		}(i)
	}
	wg.Wait()

	payloads := sink.all()
	if len(payloads) != clients {
		t.Fatalf("sink received %d payloads, want %d", len(payloads), clients)
	}
	for _, p := range payloads {
		if len(p) != 400 || !bytes.Equal(p, bytes.Repeat(p[:2], 200)) {
			t.Errorf("payload corrupted: %q...", p[:min(len(p), 16)])
		}
	}
}

func TestHTTPProvider_Register(t *testing.T) {
	p := NewHTTPProvider()
	h := http.NotFoundHandler()

	if err := p.Register(Route{Method: http.MethodGet, Path: "/a", Handler: h}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	tests := []struct {
		name    string
		route   Route
		wantErr error
	}{
		{"duplicate", Route{Method: http.MethodGet, Path: "/a", Handler: h}, ErrRouteExists},
		{"relative path", Route{Method: http.MethodGet, Path: "a", Handler: h}, nil},
		{"bad method", Route{Method: "BREW", Path: "/b", Handler: h}, nil},
		{"nil handler", Route{Method: http.MethodGet, Path: "/c"}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := p.Register(tt.route)
			if err == nil {
				t.Fatal("Register() succeeded, want error")
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("Register() error = %v, want %v", err, tt.wantErr)
			}
		})
	}

	if err := p.Register(Route{Method: http.MethodPost, Path: "/a", Handler: h}); err != nil {
		t.Errorf("same path with another method: %v", err)
	}
}

func TestHTTPProvider_StartTwiceAndStopIdle(t *testing.T) {
	p := NewHTTPProvider()
	if err := p.Stop(context.Background()); err != nil {
		t.Errorf("Stop() before Start() error = %v", err)
	}
	if err := p.Start(ProviderConfig{Host: "127.0.0.1"}); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = p.Stop(context.Background()) }()

	if err := p.Start(ProviderConfig{Host: "127.0.0.1"}); err == nil {
		t.Error("second Start() succeeded")
	}
	if p.Addr() == nil {
		t.Error("Addr() = nil after Start()")
	}
}

// stallSystemSet opens a raw connection, declares a 10-byte body and sends
// only two bytes of it.
func stallSystemSet(t *testing.T, addr string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = conn.Close() })

	req := "POST " + SystemSetPath + " HTTP/1.1\r\n" +
		"Host: device\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: 10\r\n\r\n" +
		"ab"
	if _, err := io.WriteString(conn, req); err != nil {
		t.Fatal(err)
	}
	return conn
}

func TestHTTPProvider_StalledBodyDoesNotBlock(t *testing.T) {
	provider := NewHTTPProvider()
	s := New(Config{Host: "127.0.0.1", ReadTimeout: time.Minute}, provider, nil, nil)
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	addr := provider.Addr().String()

	stallSystemSet(t, addr)
	time.Sleep(100 * time.Millisecond)

	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get("http://" + addr + InfoPath)
	if err != nil {
		t.Fatalf("GET info while a body is stalled: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("GET info status = %d, want 200", resp.StatusCode)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- s.Stop(ctx) }()

	select {
	case err := <-done:
		if !errors.Is(err, context.DeadlineExceeded) {
			t.Errorf("Stop() error = %v, want deadline exceeded", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Stop() did not return after its deadline")
	}
	if s.Running() {
		t.Error("Running() = true after Stop()")
	}
}

func TestHTTPProvider_StalledBodyTimesOut(t *testing.T) {
	provider := NewHTTPProvider()
	s := New(Config{Host: "127.0.0.1", ReadTimeout: 200 * time.Millisecond}, provider, nil, &recordingSink{})
	if err := s.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Stop(context.Background()) })

	conn := stallSystemSet(t, provider.Addr().String())
	_ = conn.SetReadDeadline(time.Now().Add(3 * time.Second))

	resp, err := http.ReadResponse(bufio.NewReader(conn), nil)
	if err != nil {
		t.Fatalf("reading response: %v", err)
	}
	_ = resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("stalled body status = %d, want 400", resp.StatusCode)
	}
}

func TestServer_RestartOnSameProvider(t *testing.T) {
	provider := NewHTTPProvider()
	s := New(Config{Host: "127.0.0.1"}, provider, nil, nil)

	for i := 0; i < 2; i++ {
		if err := s.Start(context.Background()); err != nil {
			t.Fatalf("Start() #%d error = %v", i+1, err)
		}
		if s.Degraded() {
			t.Errorf("Degraded() = true after Start() #%d", i+1)
		}

		resp, err := http.Get("http://" + provider.Addr().String() + InfoPath)
		if err != nil {
			t.Fatal(err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET info after Start() #%d = %d, want 200", i+1, resp.StatusCode)
		}

		if err := s.Stop(context.Background()); err != nil {
			t.Fatalf("Stop() #%d error = %v", i+1, err)
		}
	}
}
