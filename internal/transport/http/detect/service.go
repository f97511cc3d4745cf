package detect

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"eyescan-server/internal/domain/detection"
	"eyescan-server/internal/platform/errors"
	httptransport "eyescan-server/internal/transport/http"
	"eyescan-server/internal/utils"
)

// Service exposes the detection adapter over HTTP.
type Service struct {
	detector    Detector
	logger      *utils.Logger
	maxBodySize int64
}

// NewService creates the /detect handlers. maxBodySize <= 0 disables the limit.
func NewService(detector Detector, logger *utils.Logger, maxBodySize int64) (*Service, error) {
	if detector == nil {
		return nil, errors.New(errors.KindConfig, "detect.new", "detector is required")
	}
	if logger == nil {
		logger = utils.DefaultLogger
	}
	return &Service{
		detector:    detector,
		logger:      logger,
		maxBodySize: maxBodySize,
	}, nil
}

// Register mounts GET and POST /detect on router.
func (s *Service) Register(ctx context.Context, router *gin.RouterGroup) error {
	router.GET("/detect", s.handleGet)
	router.POST("/detect", s.handlePost)

	s.logger.InfoTag("HTTP", "detect routes registered: model=%s policy=%s", s.detector.ModelID(), s.detector.Policy())
	return nil
}

// handleGet reports the detection service status
// @Summary Detection service status
// @Tags Detection
// @Produce plain
// @Success 200 {string} string "status text"
// @Router /detect [get]
func (s *Service) handleGet(c *gin.Context) {
	c.String(http.StatusOK, fmt.Sprintf("Detection endpoint is running (model=%s, class_policy=%s)",
		s.detector.ModelID(), s.detector.Policy()))
}

// handlePost runs detection on a base64 image
// @Summary Detect eye conditions in a base64 image
// @Tags Detection
// @Accept json
// @Produce json
// @Param request body Request true "data URI of the image"
// @Success 200 {object} detection.Result
// @Failure 400 {object} httptransport.ErrorResponse
// @Failure 413 {object} httptransport.ErrorResponse
// @Failure 500 {object} httptransport.ErrorResponse
// @Router /detect [post]
func (s *Service) handlePost(c *gin.Context) {
	requestID := httptransport.RequestID(c)

	body, err := s.readBody(c)
	if err != nil {
		var maxErr *http.MaxBytesError
		if stderrors.As(err, &maxErr) {
			s.logger.WarnTag("DETECT", "request %s body exceeds %d bytes", requestID, maxErr.Limit)
			httptransport.RespondError(c, http.StatusRequestEntityTooLarge, MsgPayloadTooLarge)
			return
		}
		s.logger.WarnTag("DETECT", "request %s body read failed: %v", requestID, err)
		body = nil
	}

	result, err := s.detector.Detect(c.Request.Context(), detection.DecodeRequest(requestID, body))
	if err != nil {
		s.logger.WarnTag("DETECT", "request %s failed: %v", requestID, err)
		httptransport.RespondKindError(c, err)
		return
	}

	s.logger.InfoTag("DETECT", "request %s: %d detections", requestID, result.Count)
	c.JSON(http.StatusOK, result)
}

func (s *Service) readBody(c *gin.Context) ([]byte, error) {
	reader := io.Reader(c.Request.Body)
	if s.maxBodySize > 0 {
		reader = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxBodySize)
	}
	return io.ReadAll(reader)
}
