package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/nerrad567/homesec-core/internal/otp"
)

const (
	defaultQRSize = 256
	minQRSize     = 64
	maxQRSize     = 1024
)

// VerifyCodeRequest is the body of POST /otp/verify.
type VerifyCodeRequest struct {
	OTP *int `json:"otp"`
}

func (s *Server) handleVerifyCode(w http.ResponseWriter, r *http.Request) {
	if s.codes == nil {
		writeUnavailable(w, "door codes not configured")
		return
	}

	var req VerifyCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.OTP == nil {
		writeValidationError(w, "otp is required")
		return
	}

	err := s.codes.Verify(*req.OTP)
	switch {
	case err == nil:
		s.logger.Info("door opened by code", "request_id", requestIDFrom(r))
		writeJSON(w, http.StatusOK, map[string]string{"status": "door_opening"})
	case errors.Is(err, otp.ErrNoCode), errors.Is(err, otp.ErrExpired), errors.Is(err, otp.ErrMismatch):
		s.logger.Info("door code rejected", "reason", err, "request_id", requestIDFrom(r))
		writeUnauthorized(w, "invalid code")
	default:
		s.logger.Warn("door command not sent", "error", err, "request_id", requestIDFrom(r))
		writeUnavailable(w, "command channel unavailable")
	}
}

func (s *Server) handleCodeQR(w http.ResponseWriter, r *http.Request) {
	if s.codes == nil {
		writeUnavailable(w, "door codes not configured")
		return
	}

	size := defaultQRSize
	if v := r.URL.Query().Get("size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < minQRSize || n > maxQRSize {
			writeBadRequest(w, "size must be between 64 and 1024")
			return
		}
		size = n
	}

	png, err := s.codes.QRCode(size)
	switch {
	case err == nil:
	case errors.Is(err, otp.ErrNoCode), errors.Is(err, otp.ErrExpired):
		writeNotFound(w, "no current code")
		return
	default:
		s.logger.Error("rendering qr code failed", "error", err)
		writeInternalError(w, "failed to render code")
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	w.Write(png)
}
