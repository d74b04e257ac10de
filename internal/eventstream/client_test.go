package eventstream

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type staticTokens struct {
	token   string
	expired bool
}

func (s *staticTokens) Token() string { return s.token }
func (s *staticTokens) Expired() bool { return s.expired }

func collect(msgs *[]Message) func(Message) error {
	return func(m Message) error {
		*msgs = append(*msgs, m)
		return nil
	}
}

// TestStreamDeliversFramesInOrder runs the full progress scenario: two
// frames written with a pause in between arrive as two messages, in order.
func TestStreamDeliversFramesInOrder(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "text/event-stream",
				r.Header.Get("Accept"))
			require.Equal(t, "Bearer tok-1",
				r.Header.Get("Authorization"))

			fl := w.(http.Flusher)
			_, _ = w.Write([]byte(
				"event: start\ndata: {\"progress\":5}\n\n",
			))
			fl.Flush()
			time.Sleep(10 * time.Millisecond)
			_, _ = w.Write([]byte(
				"event: progress\ndata: {\"progress\":42}\n\n",
			))
			fl.Flush()
		},
	))
	defer srv.Close()

	client := New(Config{
		URL:    srv.URL,
		Tokens: &staticTokens{token: "tok-1"},
	})

	var msgs []Message
	err := client.Stream(context.Background(), collect(&msgs))
	require.NoError(t, err)

	require.Len(t, msgs, 2)
	require.Equal(t, "start", msgs[0].EventType)
	require.JSONEq(t, `{"progress":5}`, string(msgs[0].Data))
	require.Equal(t, "progress", msgs[1].EventType)
	require.JSONEq(t, `{"progress":42}`, string(msgs[1].Data))
}

// TestStreamExpiredSessionFastFail asserts no connection is attempted when
// the session is already known to be expired.
func TestStreamExpiredSessionFastFail(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
		},
	))
	defer srv.Close()

	client := New(Config{
		URL:    srv.URL,
		Tokens: &staticTokens{expired: true},
	})

	err := client.Stream(context.Background(), collect(&[]Message{}))
	require.ErrorIs(t, err, ErrSessionExpired)
	require.Zero(t, hits.Load())
}

// TestStreamNon2xxStatus asserts a non-2xx response is an immediate error
// carrying the status code.
func TestStreamNon2xxStatus(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "nope", http.StatusForbidden)
		},
	))
	defer srv.Close()

	client := New(Config{URL: srv.URL})

	err := client.Stream(context.Background(), collect(&[]Message{}))

	var statusErr *StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusForbidden, statusErr.Code)
}

// TestStreamCancellation asserts that caller cancellation surfaces as the
// context error, distinguishable from a remote failure, and that frames
// delivered before the cancel are kept.
func TestStreamCancellation(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fl := w.(http.Flusher)
			_, _ = w.Write([]byte("data: {\"n\":1}\n\n"))
			fl.Flush()
			<-r.Context().Done()
		},
	))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client := New(Config{URL: srv.URL})

	var msgs []Message
	errCh := make(chan error, 1)
	go func() {
		errCh <- client.Stream(ctx, func(m Message) error {
			msgs = append(msgs, m)
			cancel()
			return nil
		})
	}()

	select {
	case err := <-errCh:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not stop after cancel")
	}
	require.Len(t, msgs, 1)
}

// TestStreamDecodePolicy covers both malformed payload behaviors: strict
// surfaces an error, lenient drops the frame and keeps going.
func TestStreamDecodePolicy(t *testing.T) {
	t.Parallel()

	body := "data: {broken\n\ndata: {\"ok\":true}\n\n"
	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fl := w.(http.Flusher)
			_, _ = w.Write([]byte(body))
			fl.Flush()
		},
	))
	defer srv.Close()

	strict := New(Config{URL: srv.URL, Policy: DecodeStrict})
	var strictMsgs []Message
	err := strict.Stream(context.Background(), collect(&strictMsgs))
	require.Error(t, err)
	require.NotErrorIs(t, err, context.Canceled)
	require.Empty(t, strictMsgs)

	lenient := New(Config{URL: srv.URL, Policy: DecodeLenient})
	var lenientMsgs []Message
	err = lenient.Stream(context.Background(), collect(&lenientMsgs))
	require.NoError(t, err)
	require.Len(t, lenientMsgs, 1)
	require.JSONEq(t, `{"ok":true}`, string(lenientMsgs[0].Data))
}

// TestStreamDeliverError asserts a consumer error stops the stream and is
// returned unchanged.
func TestStreamDeliverError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			fl := w.(http.Flusher)
			_, _ = w.Write([]byte("data: {}\n\ndata: {}\n\n"))
			fl.Flush()
		},
	))
	defer srv.Close()

	client := New(Config{URL: srv.URL})

	wantErr := errors.New("consumer full")
	calls := 0
	err := client.Stream(context.Background(), func(Message) error {
		calls++
		return wantErr
	})

	require.ErrorIs(t, err, wantErr)
	require.Equal(t, 1, calls)
}
