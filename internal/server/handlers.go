package server

import (
	"encoding/json"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/muurk/wifiboot/internal/logging"
)

const (
	DefaultMessage   = "hello from wifiboot"
	DefaultExterInfo = "wifiboot control server"

	successMessage = "Post control value successfully"
)

// Status is the document served on GET /api/v1/info.
type Status struct {
	Message   string `json:"message"`
	ExterInfo string `json:"ExterInfo"`
	Hostname  string `json:"hostname,omitempty"`
	Version   string `json:"version,omitempty"`
	State     string `json:"state,omitempty"`
	SSID      string `json:"ssid,omitempty"`
}

// StatusSource supplies the status document.
type StatusSource interface {
	Status() Status
}

// StatusFunc adapts a function to StatusSource.
type StatusFunc func() Status

func (f StatusFunc) Status() Status { return f() }

// PayloadSink receives accepted configuration payloads. The slice is owned
// by the sink.
type PayloadSink interface {
	Accept(payload []byte) error
}

// PayloadFunc adapts a function to PayloadSink.
type PayloadFunc func(payload []byte) error

func (f PayloadFunc) Accept(payload []byte) error { return f(payload) }

func (s *Server) infoHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		var st Status
		if s.status != nil {
			st = s.status.Status()
		}
		if st.Message == "" {
			st.Message = DefaultMessage
		}
		if st.ExterInfo == "" {
			st.ExterInfo = DefaultExterInfo
		}
		writeJSON(w, http.StatusOK, st)
	})
}

func (s *Server) systemSetHandler(sctx *serverContext) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		total := r.ContentLength

		if err := checkLength(total); err != nil {
			s.reject(w, err)
			return
		}

		buf := sctx.acquire()
		defer sctx.release(buf)

		n, err := ingest(r.Body, int(total), buf[:])
		if err != nil {
			s.reject(w, err)
			return
		}

		payload := make([]byte, n)
		copy(payload, buf[:n])
		logging.LogRawBytes("Configuration payload", payload)

		if s.sink != nil {
			if err := s.sink.Accept(payload); err != nil {
				s.log.Warn("Payload sink rejected payload", zap.Int("bytes", n), zap.Error(err))
			}
		}

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, successMessage)
	})
}

// checkLength decides a request from its declared length alone, before any
// body bytes are read.
func checkLength(total int64) error {
	switch {
	case total < 0:
		return &RequestError{Kind: LengthRequired, Length: total}
	case total == 0:
		return &RequestError{Kind: EmptyPayload}
	case total >= ScratchSize:
		return &RequestError{Kind: PayloadTooLarge, Length: total}
	}
	return nil
}

// ingest reads exactly total bytes from body into buf and writes a NUL after
// them. Reads never ask for more than the bytes still outstanding. A read
// that makes no progress before the payload is complete is a transport
// fault.
func ingest(body io.Reader, total int, buf []byte) (int, error) {
	cur := 0
	for cur < total {
		n, err := body.Read(buf[cur:total])
		if n > 0 {
			cur += n
		}
		if cur == total {
			break
		}
		if n <= 0 || err != nil {
			if err == nil {
				err = io.ErrNoProgress
			}
			return cur, &RequestError{Kind: TransportFault, Length: int64(total), Err: err}
		}
	}
	buf[total] = 0
	return total, nil
}

func (s *Server) reject(w http.ResponseWriter, err error) {
	reqErr, ok := err.(*RequestError)
	if !ok {
		reqErr = &RequestError{Kind: TransportFault, Err: err}
	}
	s.log.Info("Rejected configuration request",
		zap.Stringer("kind", reqErr.Kind),
		zap.Int64("content_length", reqErr.Length),
		zap.Error(reqErr.Err),
	)
	http.Error(w, reqErr.Message(), reqErr.Status())
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // best-effort write; the client may have gone
		json.NewEncoder(w).Encode(v)
	}
}
