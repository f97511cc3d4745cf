package ws

import (
	"context"
	stderrors "errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"eyescan-server/internal/domain/detection"
	httptransport "eyescan-server/internal/transport/http"
	"eyescan-server/internal/utils"
)

// Detector runs one detection request; *detection.Service implements it.
type Detector interface {
	Detect(ctx context.Context, req detection.Request) (*detection.Result, error)
}

// DetectOptions configures the /ws/detect session handler.
type DetectOptions struct {
	Detector     Detector
	Logger       *utils.Logger
	MaxFrameSize int64
	IdleTimeout  time.Duration
}

// NewDetectBuilder returns a HandlerBuilder that answers every text frame
// with a detection result or an error object.
func NewDetectBuilder(opts DetectOptions) (HandlerBuilder, error) {
	if opts.Detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if opts.Logger == nil {
		opts.Logger = utils.DefaultLogger
	}

	return func(conn *Connection, _ *http.Request) (SessionHandler, error) {
		conn.SetReadLimit(opts.MaxFrameSize)
		return &detectHandler{
			conn:     conn,
			detector: opts.Detector,
			logger:   opts.Logger,
			idle:     opts.IdleTimeout,
		}, nil
	}, nil
}

type detectHandler struct {
	conn     *Connection
	detector Detector
	logger   *utils.Logger
	idle     time.Duration
	frames   int
}

func (h *detectHandler) SessionID() string {
	return h.conn.ID()
}

func (h *detectHandler) Close() {
	_ = h.conn.Close()
}

// Handle reads frames until the client disconnects or ctx is cancelled.
// Frames are processed in order and share no state.
func (h *detectHandler) Handle(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		messageType, payload, err := h.conn.ReadMessage(h.idle)
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) || h.conn.IsClosed() {
				return nil
			}
			var netErr net.Error
			if stderrors.As(err, &netErr) && netErr.Timeout() {
				h.logger.InfoTag("WebSocket", "session %s idle since %s, closing",
					h.conn.ID(), h.conn.LastActive().Format(time.RFC3339))
				return nil
			}
			return err
		}

		if messageType != websocket.TextMessage {
			if err := h.writeError(MsgBinaryUnsupported); err != nil {
				return err
			}
			continue
		}

		h.frames++
		frameID := fmt.Sprintf("%s#%d", h.conn.ID(), h.frames)
		result, detectErr := h.detector.Detect(ctx, detection.DecodeRequest(frameID, payload))
		if detectErr != nil {
			if stderrors.Is(detectErr, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			h.logger.WarnTag("WebSocket", "frame %s failed: %v", frameID, detectErr)
			if err := h.writeError(httptransport.ErrorMessage(detectErr)); err != nil {
				return err
			}
			continue
		}

		if err := h.writeJSON(result); err != nil {
			return err
		}
	}
}

func (h *detectHandler) writeError(message string) error {
	return h.writeJSON(httptransport.ErrorResponse{Error: message})
}

func (h *detectHandler) writeJSON(v interface{}) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return h.conn.WriteMessage(websocket.TextMessage, data)
}
